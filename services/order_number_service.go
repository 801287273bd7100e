package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/swiftdrop/swiftdrop-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextOrderNumber issues the next sequential order number for today,
// formatted as ORD-YYYYMMDD-NNNN. The sequence is scoped to the calendar
// day: the first order of a new day starts over at 0001.
//
// The increment is a single conditional UPDATE on the day's counter row
// (insert-on-first-use), so concurrent callers each get a distinct
// number. Must be called inside the transaction that creates the order,
// so an aborted order does not burn a visible gap mid-day.
func NextOrderNumber(tx *gorm.DB) (string, error) {
	day := time.Now().Format("20060102")

	// Ensure today's counter row exists. Conflicts with a concurrent
	// insert are fine; the row is there either way.
	counter := models.OrderCounter{Day: day, Seq: 0}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
		return "", fmt.Errorf("failed to init order counter: %w", err)
	}

	// Bump the sequence atomically. The WHERE on the day key means a
	// counter from a previous day can never be incremented by mistake.
	res := tx.Model(&models.OrderCounter{}).
		Where("day = ?", day).
		UpdateColumn("seq", gorm.Expr("seq + 1"))
	if res.Error != nil {
		return "", fmt.Errorf("failed to increment order counter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", errors.New("order counter row missing after init")
	}

	var updated models.OrderCounter
	if err := tx.First(&updated, "day = ?", day).Error; err != nil {
		return "", fmt.Errorf("failed to read order counter: %w", err)
	}

	return fmt.Sprintf("ORD-%s-%04d", day, updated.Seq), nil
}

package repository

import (
	"context"

	"gorm.io/gorm"
)

// updateByID applies updates to the row of table with the given primary key
// and returns gorm.ErrRecordNotFound when that row does not exist.
func updateByID(ctx context.Context, db *gorm.DB, table interface{}, id uint, updates map[string]interface{}) error {
	res := db.WithContext(ctx).Model(table).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the values are unchanged
	var count int64
	if err := db.WithContext(ctx).Model(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

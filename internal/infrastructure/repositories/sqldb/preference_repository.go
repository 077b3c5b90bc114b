package sqldb

import (
	"context"
	"errors"
	"fmt"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/pkg/tracing"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLPreferenceRepository struct {
	db *gorm.DB
}

func NewSQLPreferenceRepository(db *gorm.DB) ports.PreferenceRepository {
	return &SQLPreferenceRepository{db: db}
}

func (r *SQLPreferenceRepository) Get(ctx context.Context, userID domain.UserID) (_ domain.Preferences, _ bool, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, r.db.Dialector.Name(), "select", preferenceRow{}.TableName())
	defer tracing.EndOperation(span, &err)

	var row preferenceRow
	err = r.db.WithContext(ctx).First(&row, "user_id = ?", string(userID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get preferences: %w", err)
	}

	stored := row.Preferences.Data()
	prefs := make(domain.Preferences, len(stored))
	for category, enabled := range stored {
		prefs[domain.Category(category)] = enabled
	}
	return prefs, true, nil
}

func (r *SQLPreferenceRepository) Save(ctx context.Context, prefs *domain.UserPreferences) (err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, r.db.Dialector.Name(), "upsert", preferenceRow{}.TableName())
	defer tracing.EndOperation(span, &err)

	stored := make(map[string]bool, len(prefs.Preferences))
	for category, enabled := range prefs.Preferences {
		stored[string(category)] = enabled
	}

	row := preferenceRow{
		UserID:      string(prefs.UserID),
		Preferences: datatypes.NewJSONType(stored),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"preferences", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

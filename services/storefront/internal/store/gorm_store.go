package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alexandria/internal/util"
	"alexandria/pkg/domain"
)

// GormSessionStore persists sessions in Postgres through GORM.
type GormSessionStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewGormSessionStore opens the DB and runs auto-migrations.
func NewGormSessionStore(dsn string, ttl time.Duration) (*GormSessionStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewGormSessionStoreWithDB(db, ttl)
}

// NewGormSessionStoreWithDB wraps an already opened connection.
func NewGormSessionStoreWithDB(db *gorm.DB, ttl time.Duration) (*GormSessionStore, error) {
	if err := db.AutoMigrate(&SessionModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormSessionStore{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *GormSessionStore) Create(ctx context.Context, user domain.User) (domain.SessionRecord, error) {
	rec, err := newRecord(util.NewID(), user, s.now())
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if err := s.save(ctx, rec); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

func (s *GormSessionStore) Get(ctx context.Context, id string) (domain.SessionRecord, bool, error) {
	var model SessionModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND (expires_at IS NULL OR expires_at > ?)", id, s.now()).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, err
	}
	rec, err := recordFromModel(model)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("session record cleared", slog.String("reason", err.Error()))
		if delErr := s.Delete(ctx, id); delErr != nil {
			return domain.SessionRecord{}, false, delErr
		}
		return domain.SessionRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *GormSessionStore) Update(ctx context.Context, id string, user domain.User) (domain.SessionRecord, error) {
	rec, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if !ok {
		return domain.SessionRecord{}, ErrSessionNotFound
	}
	if user.UserID <= 0 {
		return domain.SessionRecord{}, ErrInvalidUser
	}
	rec.User = user
	rec.UpdatedAt = s.now()
	if err := s.save(ctx, rec); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

func (s *GormSessionStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&SessionModel{}, "id = ?", id).Error
}

// PurgeExpired removes sessions past their expiry and returns how many went.
func (s *GormSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).Delete(&SessionModel{})
	return res.RowsAffected, res.Error
}

func (s *GormSessionStore) save(ctx context.Context, rec domain.SessionRecord) error {
	model, err := modelFromRecord(rec, s.ttl)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "record", "updated_at", "expires_at"}),
	}).Create(&model).Error
}

func modelFromRecord(rec domain.SessionRecord, ttl time.Duration) (SessionModel, error) {
	data, err := encodeRecord(rec)
	if err != nil {
		return SessionModel{}, err
	}
	model := SessionModel{
		ID:        rec.ID,
		UserID:    rec.User.UserID,
		Record:    datatypes.JSON(data),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if ttl > 0 {
		exp := rec.UpdatedAt.Add(ttl)
		model.ExpiresAt = &exp
	}
	return model, nil
}

func recordFromModel(m SessionModel) (domain.SessionRecord, error) {
	rec, err := decodeRecord(m.Record)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if rec.ID != m.ID {
		return domain.SessionRecord{}, fmt.Errorf("decode session: id mismatch %q != %q", rec.ID, m.ID)
	}
	return rec, nil
}

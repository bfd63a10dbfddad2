package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tutorly/pkg/domain"
)

// migrationLockKey is the advisory lock key guarding schema migration so
// that several replicas starting at once do not race AutoMigrate.
const migrationLockKey int64 = 7_421_014_001

// GormStore implements Store on top of a GORM database handle.
type GormStore struct {
	db *gorm.DB
}

// Open connects to Postgres, runs migrations under an advisory lock and
// returns a ready store.
func Open(dsn string, maxConns int) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an existing handle, migrating the schema
// without the advisory lock. Used by tests with a sqlite database.
func NewGormStoreFromDB(db *gorm.DB) (*GormStore, error) {
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying handle for components that run their own
// transactions against the same schema.
func (s *GormStore) DB() *gorm.DB { return s.db }

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&UserModel{},
		&ConversationModel{},
		&TopicModel{},
		&SectionModel{},
		&ReviewModel{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	if db.Dialector.Name() != "postgres" {
		return fn(db)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access connection pool: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	fnErr := fn(db)
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKey); err != nil && fnErr == nil {
		fnErr = fmt.Errorf("release migration lock: %w", err)
	}
	return fnErr
}

func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	m := userToModel(u)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "password_hash", "role", "status", "subscription_tier",
			"queries_used", "period_start", "updated_at",
		}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// UpdateUserAccess changes only role and status. Quota counters are
// owned by the ledger and stay untouched here, so an access change
// cannot clobber usage committed since the caller read the row.
func (s *GormStore) UpdateUserAccess(ctx context.Context, id string, role domain.UserRole, status domain.UserStatus) error {
	err := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"role":       string(role),
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("update user access: %w", err)
	}
	return nil
}

func (s *GormStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users by email: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var m UserModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("get user by email: %w", err)
	}
	return userFromModel(m), true, nil
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var m UserModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("get user by id: %w", err)
	}
	return userFromModel(m), true, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var ms []UserModel
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(ms))
	for _, m := range ms {
		users = append(users, userFromModel(m))
	}
	return users, nil
}

func (s *GormStore) UserCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// DeleteUser removes the account together with its conversation log
// and reviews.
func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ConversationModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ReviewModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *GormStore) ListConversationsByUser(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ms []ConversationModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	convs := make([]domain.Conversation, 0, len(ms))
	for _, m := range ms {
		c, err := conversationFromModel(m)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, nil
}

func (s *GormStore) SaveTopic(ctx context.Context, t domain.Topic) error {
	m := topicToModel(t)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "slug", "summary", "position", "published", "updated_at",
		}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save topic: %w", err)
	}
	return nil
}

func (s *GormStore) GetTopicByID(ctx context.Context, id string) (domain.Topic, bool, error) {
	var m TopicModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Topic{}, false, nil
	}
	if err != nil {
		return domain.Topic{}, false, fmt.Errorf("get topic: %w", err)
	}
	return topicFromModel(m), true, nil
}

func (s *GormStore) GetTopicBySlug(ctx context.Context, slug string) (domain.Topic, bool, error) {
	var m TopicModel
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Topic{}, false, nil
	}
	if err != nil {
		return domain.Topic{}, false, fmt.Errorf("get topic by slug: %w", err)
	}
	return topicFromModel(m), true, nil
}

func (s *GormStore) ListTopics(ctx context.Context, publishedOnly bool) ([]domain.Topic, error) {
	q := s.db.WithContext(ctx).Order("position asc, created_at asc")
	if publishedOnly {
		q = q.Where("published = ?", true)
	}
	var ms []TopicModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	topics := make([]domain.Topic, 0, len(ms))
	for _, m := range ms {
		topics = append(topics, topicFromModel(m))
	}
	return topics, nil
}

func (s *GormStore) DeleteTopic(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&SectionModel{}, "topic_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ReviewModel{}, "topic_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&TopicModel{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return nil
}

func (s *GormStore) SaveSection(ctx context.Context, sec domain.Section) error {
	m := sectionToModel(sec)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"topic_id", "title", "body", "position", "attachment_key", "updated_at",
		}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save section: %w", err)
	}
	return nil
}

func (s *GormStore) GetSectionByID(ctx context.Context, id string) (domain.Section, bool, error) {
	var m SectionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Section{}, false, nil
	}
	if err != nil {
		return domain.Section{}, false, fmt.Errorf("get section: %w", err)
	}
	return sectionFromModel(m), true, nil
}

func (s *GormStore) ListSectionsByTopic(ctx context.Context, topicID string) ([]domain.Section, error) {
	var ms []SectionModel
	err := s.db.WithContext(ctx).Where("topic_id = ?", topicID).Order("position asc, created_at asc").Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	sections := make([]domain.Section, 0, len(ms))
	for _, m := range ms {
		sections = append(sections, sectionFromModel(m))
	}
	return sections, nil
}

func (s *GormStore) DeleteSection(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&SectionModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

func (s *GormStore) SaveReview(ctx context.Context, r domain.Review) error {
	m := reviewToModel(r)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "topic_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

func (s *GormStore) ListReviewsByTopic(ctx context.Context, topicID string) ([]domain.Review, error) {
	var ms []ReviewModel
	err := s.db.WithContext(ctx).Where("topic_id = ?", topicID).Order("created_at desc").Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	reviews := make([]domain.Review, 0, len(ms))
	for _, m := range ms {
		reviews = append(reviews, reviewFromModel(m))
	}
	return reviews, nil
}

package infrastructure

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"backend-eval/domain"
)

// OpenMySQL connects and migrates the jobs table.
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Job{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	fmt.Println("✅ Connected to MySQL and migrated schema")
	return db, nil
}

// GormStore implements evaluator.JobStore on top of gorm. Status transitions
// are guarded in SQL so two racing workers can never both claim a job and a
// completed job can never be rewritten.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(job *domain.Job) error {
	return s.db.Create(job).Error
}

func (s *GormStore) Get(id string) (*domain.Job, error) {
	var job domain.Job
	err := s.db.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *GormStore) ClaimProcessing(id string) (bool, error) {
	claimed, err := s.transition(id, domain.StatusQueued, domain.StatusProcessing, map[string]interface{}{})
	if err != nil {
		return false, err
	}
	return claimed > 0, nil
}

func (s *GormStore) Complete(id string, resultJSON string) error {
	// Result and status land in one UPDATE: a reader can never observe
	// completed without a result.
	completed, err := s.transition(id, domain.StatusProcessing, domain.StatusCompleted, map[string]interface{}{
		"result": &resultJSON,
	})
	if err != nil {
		return err
	}
	if completed == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// transition moves a job one step forward. The state machine rejects the
// move up front; the WHERE clause enforces it against concurrent writers.
func (s *GormStore) transition(id string, from, to domain.JobStatus, fields map[string]interface{}) (int64, error) {
	if !from.CanTransition(to) {
		return 0, domain.ErrInvalidTransition
	}
	fields["status"] = to
	fields["updated_at"] = time.Now()
	res := s.db.Model(&domain.Job{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	return res.RowsAffected, res.Error
}

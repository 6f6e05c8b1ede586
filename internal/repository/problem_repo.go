package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/codeclash/codeclash-api/internal/models"
)

// ProblemQuery filters the problem listing.
type ProblemQuery struct {
	Difficulty string
	Tag        string
	Search     string
	Page       int
	PageSize   int
}

// ProblemRepository exposes read access to published problems.
type ProblemRepository interface {
	List(ctx context.Context, query ProblemQuery) ([]models.Problem, int64, error)
	GetByID(ctx context.Context, id uint) (models.Problem, error)
	GetBySlug(ctx context.Context, slug string) (models.Problem, error)
}

// NewProblemRepository constructs a problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

type problemRepository struct {
	db *gorm.DB
}

func (r *problemRepository) List(ctx context.Context, query ProblemQuery) ([]models.Problem, int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Problem{})

	if difficulty := strings.TrimSpace(query.Difficulty); difficulty != "" {
		tx = tx.Where("difficulty = ?", strings.ToLower(difficulty))
	}
	if tag := strings.TrimSpace(query.Tag); tag != "" {
		tx = tx.Where("tags LIKE ?", "%"+tag+"%")
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		tx = tx.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	page := query.Page
	if page < 1 {
		page = 1
	}

	var problems []models.Problem
	err := tx.Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&problems).Error
	if err != nil {
		return nil, 0, err
	}

	return problems, total, nil
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	err := r.db.WithContext(ctx).
		Preload("TestCases").
		First(&problem, id).Error
	if err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}

func (r *problemRepository) GetBySlug(ctx context.Context, slug string) (models.Problem, error) {
	var problem models.Problem
	err := r.db.WithContext(ctx).
		Preload("TestCases").
		Where("slug = ?", slug).
		First(&problem).Error
	if err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}

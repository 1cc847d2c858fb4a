package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-go-api/internal/models"
)

// CourseRepository handles persistence of courses and their structure.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, title, description, intelligent_progress_enabled, published, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindModule returns a single module scoped to its course.
func (r *CourseRepository) FindModule(ctx context.Context, courseID, moduleID string) (*models.CourseModule, error) {
	const query = `SELECT id, course_id, title, position FROM course_modules WHERE id = $1 AND course_id = $2`
	var module models.CourseModule
	if err := r.db.GetContext(ctx, &module, query, moduleID, courseID); err != nil {
		return nil, err
	}
	return &module, nil
}

// Structure loads the full course layout used by progress computation:
// modules in order with their components, quizzes and activities.
func (r *CourseRepository) Structure(ctx context.Context, courseID string) (*models.CourseStructure, error) {
	course, err := r.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}

	const moduleQuery = `SELECT id, course_id, title, position FROM course_modules WHERE course_id = $1 ORDER BY position ASC`
	var modules []models.CourseModule
	if err := r.db.SelectContext(ctx, &modules, moduleQuery, courseID); err != nil {
		return nil, fmt.Errorf("load course modules: %w", err)
	}

	structure := &models.CourseStructure{
		Course:     *course,
		Modules:    modules,
		Components: make(map[string][]models.ModuleComponent, len(modules)),
		Quizzes:    make(map[string][]models.Quiz, len(modules)),
		Activities: make(map[string][]models.Activity, len(modules)),
	}
	if len(modules) == 0 {
		return structure, nil
	}

	moduleIDs := make([]string, len(modules))
	for i, module := range modules {
		moduleIDs[i] = module.ID
	}
	placeholders := make([]string, len(moduleIDs))
	args := make([]interface{}, len(moduleIDs))
	for i, id := range moduleIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	in := strings.Join(placeholders, ",")

	componentQuery := fmt.Sprintf(`SELECT id, module_id, title, position, mandatory FROM module_components WHERE module_id IN (%s) ORDER BY position ASC`, in)
	var components []models.ModuleComponent
	if err := r.db.SelectContext(ctx, &components, componentQuery, args...); err != nil {
		return nil, fmt.Errorf("load module components: %w", err)
	}
	for _, component := range components {
		structure.Components[component.ModuleID] = append(structure.Components[component.ModuleID], component)
	}

	quizQuery := fmt.Sprintf(`SELECT id, module_id, title, mandatory, max_attempts, passing_score, final_quiz FROM quizzes WHERE module_id IN (%s)`, in)
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, quizQuery, args...); err != nil {
		return nil, fmt.Errorf("load module quizzes: %w", err)
	}
	for _, quiz := range quizzes {
		structure.Quizzes[quiz.ModuleID] = append(structure.Quizzes[quiz.ModuleID], quiz)
	}

	activityQuery := fmt.Sprintf(`SELECT id, module_id, title, mandatory, max_score, weight FROM activities WHERE module_id IN (%s)`, in)
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, activityQuery, args...); err != nil {
		return nil, fmt.Errorf("load module activities: %w", err)
	}
	for _, activity := range activities {
		structure.Activities[activity.ModuleID] = append(structure.Activities[activity.ModuleID], activity)
	}

	return structure, nil
}

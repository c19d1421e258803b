package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/bacembenakkari/TalentCloud/internal/models"
)

// Repository stores profiles, job offers and applications. Every method is
// a single-row write or read that commits on its own.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const profileColumns = `id, user_id, kind, status, rejection_reason, blocked, visibility,
	first_name, last_name, email, job_title, created_at, updated_at`

// Profile operations
func (r *Repository) CreateProfile(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, kind, status, rejection_reason, blocked, visibility,
			first_name, last_name, email, job_title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		p.UserID, p.Kind, p.Status, p.RejectionReason, p.Blocked, p.Visibility,
		p.FirstName, p.LastName, p.Email, p.JobTitle, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return errors.Wrap(err, "failed to insert profile")
}

func (r *Repository) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.GetContext(ctx, p, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get profile %d", id)
	}
	return p, nil
}

func (r *Repository) GetProfileByUser(ctx context.Context, userID string, kind models.ProfileKind) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.GetContext(ctx, p,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 AND kind = $2`, userID, kind)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s profile for user %s", kind, userID)
	}
	return p, nil
}

// UpdateProfileStatus moves a profile from one status to another. The
// update only applies if the profile is still in status from, so two admins
// reviewing the same profile cannot both succeed.
func (r *Repository) UpdateProfileStatus(ctx context.Context, id int64, from, to models.ProfileStatus, reason *string) error {
	query := `
		UPDATE profiles
		SET status = $1, rejection_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, to, reason, time.Now().UTC(), id, from)
	if err != nil {
		return errors.Wrapf(err, "failed to update status of profile %d", id)
	}
	return expectOneRow(result)
}

func (r *Repository) UpdateProfileVisibility(ctx context.Context, id int64, visibility models.Visibility, blocked bool) error {
	query := `
		UPDATE profiles
		SET visibility = $1, blocked = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, visibility, blocked, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrapf(err, "failed to update visibility of profile %d", id)
	}
	if err := expectOneRow(result); err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Job offer operations
func (r *Repository) CreateJobOffer(ctx context.Context, j *models.JobOffer) error {
	query := `
		INSERT INTO job_offers (client_id, title, description, location, employment_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		j.ClientID, j.Title, j.Description, j.Location, j.EmploymentType, j.CreatedAt,
	).Scan(&j.ID)
	return errors.Wrap(err, "failed to insert job offer")
}

func (r *Repository) GetJobOffer(ctx context.Context, id int64) (*models.JobOffer, error) {
	j := &models.JobOffer{}
	err := r.db.GetContext(ctx, j, `
		SELECT id, client_id, title, description, location, employment_type, created_at
		FROM job_offers WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job offer %d", id)
	}
	return j, nil
}

// Application operations
func (r *Repository) CreateApplication(ctx context.Context, a *models.Application) error {
	query := `
		INSERT INTO applications (job_offer_id, candidate_id, status, applied_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		a.JobOfferID, a.CandidateID, a.Status, a.AppliedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return errors.Wrap(err, "failed to insert application")
}

func (r *Repository) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	a := &models.Application{}
	err := r.db.GetContext(ctx, a, `
		SELECT id, job_offer_id, candidate_id, status, applied_at, updated_at
		FROM applications WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get application %d", id)
	}
	return a, nil
}

// UpdateApplicationStatus sets a new status and returns the one it
// replaced. Writing the current status again is a valid update.
func (r *Repository) UpdateApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus) (old models.ApplicationStatus, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.GetContext(ctx, &old, `SELECT status FROM applications WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lock application %d", id)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id); err != nil {
		return "", errors.Wrapf(err, "failed to update application %d", id)
	}

	if err = tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit application status")
	}
	return old, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

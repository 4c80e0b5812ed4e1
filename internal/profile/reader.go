// Package profile reads organization profiles for scoring. Profiles are
// owned by the onboarding system; this service never writes them outside
// of seeding and tooling.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/db"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

var ErrProfileNotFound = errors.New("organization profile not found")

// Reader resolves an org id to its current profile.
type Reader interface {
	GetProfile(ctx context.Context, orgID uuid.UUID) (models.OrganizationProfile, error)
}

// PGReader reads profiles from the org_profiles table.
type PGReader struct {
	store *db.Store
}

func NewPGReader(store *db.Store) *PGReader {
	return &PGReader{store: store}
}

func (r *PGReader) GetProfile(ctx context.Context, orgID uuid.UUID) (models.OrganizationProfile, error) {
	p, err := r.store.GetOrgProfile(ctx, orgID)
	if errors.Is(err, db.ErrNotFound) {
		return p, ErrProfileNotFound
	}
	return p, err
}

// FileReader reads profiles from <dir>/<org_id>.json. Used by the CLI
// tools and in tests where no database is running.
type FileReader struct {
	dir string
}

func NewFileReader(dir string) *FileReader {
	return &FileReader{dir: dir}
}

func (r *FileReader) GetProfile(ctx context.Context, orgID uuid.UUID) (models.OrganizationProfile, error) {
	path := filepath.Join(r.dir, orgID.String()+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return models.OrganizationProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return models.OrganizationProfile{}, fmt.Errorf("reading profile file: %w", err)
	}

	var p models.OrganizationProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if p.OrgID == uuid.Nil {
		p.OrgID = orgID
	}
	if p.ProfileVersion == 0 {
		p.ProfileVersion = 1
	}
	return p, nil
}

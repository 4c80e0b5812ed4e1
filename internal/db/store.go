package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/ingest"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/metrics"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertOutcome classifies what one upsert did to the stored row.
type UpsertOutcome string

const (
	OutcomeInserted  UpsertOutcome = "inserted"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

const selectCols = `id, source_id, external_id, title, funder_name, description,
	amount_min, amount_max, deadline, published_at, location_scope, source_type,
	created_at, updated_at`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	err := scan(
		&o.ID, &o.SourceID, &o.ExternalID, &o.Title, &o.FunderName, &o.Description,
		&o.AmountMin, &o.AmountMax, &o.Deadline, &o.PublishedAt, &o.LocationScope, &o.SourceType,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// upsertSetClause preserves stored values when the provider omits a field
// this time. A run that sees less data than the last one must not erase
// what we already know.
const upsertSetClause = `
		updated_at = NOW(),
		title = EXCLUDED.title,
		title_key = EXCLUDED.title_key,
		funder_name = COALESCE(NULLIF(EXCLUDED.funder_name, ''), opportunities.funder_name),
		funder_key = COALESCE(NULLIF(EXCLUDED.funder_key, ''), opportunities.funder_key),
		description = COALESCE(NULLIF(EXCLUDED.description, ''), opportunities.description),
		amount_min = COALESCE(EXCLUDED.amount_min, opportunities.amount_min),
		amount_max = COALESCE(EXCLUDED.amount_max, opportunities.amount_max),
		deadline = COALESCE(EXCLUDED.deadline, opportunities.deadline),
		published_at = COALESCE(EXCLUDED.published_at, opportunities.published_at),
		location_scope = COALESCE(NULLIF(EXCLUDED.location_scope, ''), opportunities.location_scope),
		source_type = COALESCE(NULLIF(EXCLUDED.source_type, ''), opportunities.source_type),
		raw_payload = COALESCE(EXCLUDED.raw_payload, opportunities.raw_payload)`

// upsertChangedPredicate keeps the update a no-op when nothing material
// differs, so unchanged rows can be counted as cache hits.
const upsertChangedPredicate = `
		opportunities.title IS DISTINCT FROM EXCLUDED.title
		OR (EXCLUDED.description <> '' AND opportunities.description IS DISTINCT FROM EXCLUDED.description)
		OR (EXCLUDED.funder_name <> '' AND opportunities.funder_name IS DISTINCT FROM EXCLUDED.funder_name)
		OR (EXCLUDED.amount_min IS NOT NULL AND opportunities.amount_min IS DISTINCT FROM EXCLUDED.amount_min)
		OR (EXCLUDED.amount_max IS NOT NULL AND opportunities.amount_max IS DISTINCT FROM EXCLUDED.amount_max)
		OR (EXCLUDED.deadline IS NOT NULL AND opportunities.deadline IS DISTINCT FROM EXCLUDED.deadline)
		OR (EXCLUDED.location_scope <> '' AND opportunities.location_scope IS DISTINCT FROM EXCLUDED.location_scope)`

// UpsertOpportunity inserts or merges one normalized opportunity. Identity
// is (source_id, external_id) when the provider supplied an external id,
// otherwise (source_id, title_key, funder_key). The opportunity's ID field
// is populated on return.
func (s *Store) UpsertOpportunity(ctx context.Context, opp *models.Opportunity) (UpsertOutcome, error) {
	titleKey := ingest.TitleKey(opp.Title)
	funderKey := ingest.FunderKey(opp.FunderName)
	if titleKey == "" {
		return "", fmt.Errorf("opportunity has no usable title")
	}

	conflictTarget := "(source_id, external_id) WHERE external_id <> ''"
	if opp.ExternalID == "" {
		conflictTarget = "(source_id, title_key, funder_key) WHERE external_id = ''"
	}

	query := fmt.Sprintf(`
		INSERT INTO opportunities (
			source_id, external_id, title, title_key, funder_name, funder_key,
			description, amount_min, amount_max, deadline, published_at,
			location_scope, source_type, raw_payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT %s DO UPDATE SET %s
		WHERE %s
		RETURNING id, (xmax = 0) AS inserted
	`, conflictTarget, upsertSetClause, upsertChangedPredicate)

	// raw_payload is TEXT: providers hand back JSON, XML, or HTML fragments.
	var payload interface{}
	if len(opp.RawPayload) > 0 {
		payload = string(opp.RawPayload)
	}

	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		opp.SourceID, opp.ExternalID, opp.Title, titleKey, opp.FunderName, funderKey,
		opp.Description, opp.AmountMin, opp.AmountMax, opp.Deadline, opp.PublishedAt,
		opp.LocationScope, opp.SourceType, payload,
	).Scan(&opp.ID, &inserted)

	// One retry on transport-level failures; semantic errors surface as is.
	if err != nil && !errors.Is(err, pgx.ErrNoRows) && isTransient(err) {
		err = s.pool.QueryRow(ctx, query,
			opp.SourceID, opp.ExternalID, opp.Title, titleKey, opp.FunderName, funderKey,
			opp.Description, opp.AmountMin, opp.AmountMax, opp.Deadline, opp.PublishedAt,
			opp.LocationScope, opp.SourceType, payload,
		).Scan(&opp.ID, &inserted)
	}

	switch {
	case err == nil:
		outcome := OutcomeUpdated
		if inserted {
			outcome = OutcomeInserted
		}
		metrics.UpsertOutcomes.WithLabelValues(string(outcome)).Inc()
		return outcome, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Conflict row exists and nothing material changed; fetch its id.
		id, lookupErr := s.lookupOpportunityID(ctx, opp.SourceID, opp.ExternalID, titleKey, funderKey)
		if lookupErr != nil {
			return "", fmt.Errorf("resolving unchanged opportunity: %w", lookupErr)
		}
		opp.ID = id
		metrics.UpsertOutcomes.WithLabelValues(string(OutcomeUnchanged)).Inc()
		return OutcomeUnchanged, nil
	default:
		return "", fmt.Errorf("upserting opportunity: %w", err)
	}
}

// isTransient reports whether an upsert failure is worth one more try.
// Server-side errors carry a PgError and are never retried blindly.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func (s *Store) lookupOpportunityID(ctx context.Context, sourceID, externalID, titleKey, funderKey string) (uuid.UUID, error) {
	var id uuid.UUID
	var err error
	if externalID != "" {
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM opportunities WHERE source_id = $1 AND external_id = $2`,
			sourceID, externalID).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM opportunities WHERE source_id = $1 AND title_key = $2 AND funder_key = $3 AND external_id = ''`,
			sourceID, titleKey, funderKey).Scan(&id)
	}
	return id, err
}

type ListParams struct {
	Source         string
	Query          string
	DeadlineBefore *time.Time
	DeadlineAfter  *time.Time
	MinScore       *float64  // requires OrgID
	OrgID          uuid.UUID // joins cached match scores when set
	Limit          int
	Offset         int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

func (s *Store) ListOpportunities(ctx context.Context, params ListParams) (*ListResult, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (o.title ILIKE '%%' || $%d || '%%' OR o.description ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.Source != "" {
		where += fmt.Sprintf(" AND o.source_id = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}
	if params.DeadlineAfter != nil {
		where += fmt.Sprintf(" AND o.deadline >= $%d", argIdx)
		args = append(args, *params.DeadlineAfter)
		argIdx++
	}
	if params.DeadlineBefore != nil {
		where += fmt.Sprintf(" AND o.deadline <= $%d", argIdx)
		args = append(args, *params.DeadlineBefore)
		argIdx++
	}

	join := ""
	orderBy := "ORDER BY o.deadline ASC NULLS LAST, o.id ASC"
	if params.OrgID != uuid.Nil {
		join = fmt.Sprintf(" LEFT JOIN match_results m ON m.opportunity_id = o.id AND m.org_id = $%d", argIdx)
		args = append(args, params.OrgID)
		argIdx++
		orderBy = "ORDER BY m.composite_score DESC NULLS LAST, o.deadline ASC NULLS LAST, o.id ASC"
		if params.MinScore != nil {
			where += fmt.Sprintf(" AND m.composite_score >= $%d", argIdx)
			args = append(args, *params.MinScore)
			argIdx++
		}
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM opportunities o" + join + " " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting opportunities: %w", err)
	}

	cols := prefixCols("o", selectCols)
	query := fmt.Sprintf("SELECT %s FROM opportunities o%s %s %s LIMIT $%d OFFSET $%d",
		cols, join, where, orderBy, argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing opportunities: %w", err)
	}
	defer rows.Close()

	opportunities := make([]models.Opportunity, 0, limit)
	for rows.Next() {
		opp, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning opportunity: %w", err)
		}
		opportunities = append(opportunities, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListResult{
		Opportunities: opportunities,
		Total:         total,
		Limit:         limit,
		Offset:        params.Offset,
	}, nil
}

// prefixCols qualifies a comma-separated column list with a table alias.
func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+selectCols+" FROM opportunities WHERE id = $1", id)
	opp, err := scanOpportunity(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return opp, ErrNotFound
	}
	if err != nil {
		return opp, fmt.Errorf("getting opportunity: %w", err)
	}
	return opp, nil
}

// AllOpportunityIDsForOrg lists opportunity ids visible to an org, newest
// first, excluding anything the org has dismissed.
func (s *Store) AllOpportunityIDsForOrg(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.id FROM opportunities o
		WHERE NOT EXISTS (
			SELECT 1 FROM org_interactions i
			WHERE i.org_id = $1 AND i.opportunity_id = o.id AND i.action = 'dismissed'
		)
		ORDER BY o.created_at DESC, o.id ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing visible opportunities: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OpportunitiesByIDs fetches a batch preserving no particular order.
func (s *Store) OpportunitiesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Opportunity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, "SELECT "+selectCols+" FROM opportunities WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("fetching opportunities: %w", err)
	}
	defer rows.Close()

	out := make([]models.Opportunity, 0, len(ids))
	for rows.Next() {
		opp, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

// --- organizations and profiles ---

func (s *Store) CreateOrganization(ctx context.Context, name, email, passwordHash string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO organizations (name, email, password_hash)
		VALUES ($1, $2, $3) RETURNING id`,
		name, strings.ToLower(email), passwordHash).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating organization: %w", err)
	}
	return id, nil
}

func (s *Store) GetOrganizationByEmail(ctx context.Context, email string) (id uuid.UUID, passwordHash string, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT id, password_hash FROM organizations WHERE email = $1`,
		strings.ToLower(email)).Scan(&id, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, "", ErrNotFound
	}
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("looking up organization: %w", err)
	}
	return id, passwordHash, nil
}

func (s *Store) GetOrgProfile(ctx context.Context, orgID uuid.UUID) (models.OrganizationProfile, error) {
	var p models.OrganizationProfile
	err := s.pool.QueryRow(ctx, `
		SELECT org_id, profile_version, mission, focus_areas, keywords,
			city, state, geographic_scope, budget_min, budget_max, org_type
		FROM org_profiles WHERE org_id = $1`, orgID).Scan(
		&p.OrgID, &p.ProfileVersion, &p.Mission, &p.FocusAreas, &p.Keywords,
		&p.City, &p.State, &p.GeographicScope, &p.BudgetMin, &p.BudgetMax, &p.OrgType,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("getting org profile: %w", err)
	}
	return p, nil
}

// UpsertOrgProfile writes a profile, bumping profile_version on update so
// cached match scores for the old profile stop matching.
func (s *Store) UpsertOrgProfile(ctx context.Context, p models.OrganizationProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO org_profiles (
			org_id, profile_version, mission, focus_areas, keywords,
			city, state, geographic_scope, budget_min, budget_max, org_type, updated_at
		) VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (org_id) DO UPDATE SET
			profile_version = org_profiles.profile_version + 1,
			mission = EXCLUDED.mission,
			focus_areas = EXCLUDED.focus_areas,
			keywords = EXCLUDED.keywords,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			geographic_scope = EXCLUDED.geographic_scope,
			budget_min = EXCLUDED.budget_min,
			budget_max = EXCLUDED.budget_max,
			org_type = EXCLUDED.org_type,
			updated_at = NOW()`,
		p.OrgID, p.Mission, p.FocusAreas, p.Keywords,
		p.City, p.State, p.GeographicScope, p.BudgetMin, p.BudgetMax, p.OrgType)
	if err != nil {
		return fmt.Errorf("upserting org profile: %w", err)
	}
	return nil
}

// --- interactions ---

// RecordInteraction stores the latest action last-write-wins.
func (s *Store) RecordInteraction(ctx context.Context, orgID, oppID uuid.UUID, action models.InteractionAction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO org_interactions (org_id, opportunity_id, action, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (org_id, opportunity_id) DO UPDATE SET
			action = EXCLUDED.action,
			updated_at = NOW()`,
		orgID, oppID, action)
	if err != nil {
		return fmt.Errorf("recording interaction: %w", err)
	}
	return nil
}

func (s *Store) ListInteractions(ctx context.Context, orgID uuid.UUID) ([]models.Interaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT org_id, opportunity_id, action, updated_at
		FROM org_interactions WHERE org_id = $1
		ORDER BY updated_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing interactions: %w", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		var i models.Interaction
		if err := rows.Scan(&i.OrgID, &i.OpportunityID, &i.Action, &i.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// --- match cache ---

// GetMatch returns the cached score for a pair if it was computed against
// the given profile version; a stale row is a miss.
func (s *Store) GetMatch(ctx context.Context, oppID, orgID uuid.UUID, profileVersion int) (models.MatchResult, bool, error) {
	var m models.MatchResult
	var dims []byte
	err := s.pool.QueryRow(ctx, `
		SELECT opportunity_id, org_id, profile_version, composite_score,
			dimension_scores, confidence_level, explanation, scored_at
		FROM match_results
		WHERE opportunity_id = $1 AND org_id = $2 AND profile_version = $3`,
		oppID, orgID, profileVersion).Scan(
		&m.OpportunityID, &m.OrgID, &m.ProfileVersion, &m.CompositeScore,
		&dims, &m.Confidence, &m.Explanation, &m.ScoredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("getting match: %w", err)
	}
	if err := json.Unmarshal(dims, &m.DimensionScores); err != nil {
		return m, false, fmt.Errorf("decoding dimension scores: %w", err)
	}
	return m, true, nil
}

func (s *Store) PutMatch(ctx context.Context, m models.MatchResult) error {
	dims, err := json.Marshal(m.DimensionScores)
	if err != nil {
		return fmt.Errorf("encoding dimension scores: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO match_results (
			opportunity_id, org_id, profile_version, composite_score,
			dimension_scores, confidence_level, explanation, scored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (opportunity_id, org_id) DO UPDATE SET
			profile_version = EXCLUDED.profile_version,
			composite_score = EXCLUDED.composite_score,
			dimension_scores = EXCLUDED.dimension_scores,
			confidence_level = EXCLUDED.confidence_level,
			explanation = EXCLUDED.explanation,
			scored_at = EXCLUDED.scored_at`,
		m.OpportunityID, m.OrgID, m.ProfileVersion, m.CompositeScore,
		dims, m.Confidence, m.Explanation, m.ScoredAt)
	if err != nil {
		return fmt.Errorf("storing match: %w", err)
	}
	return nil
}

// TopMatchesForOrg returns the highest-scoring cached matches with their
// opportunities, excluding dismissed ones.
func (s *Store) TopMatchesForOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Opportunity, []models.MatchResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixCols("o", selectCols)+`,
			m.profile_version, m.composite_score, m.dimension_scores,
			m.confidence_level, m.explanation, m.scored_at
		FROM match_results m
		JOIN opportunities o ON o.id = m.opportunity_id
		WHERE m.org_id = $1
			AND NOT EXISTS (
				SELECT 1 FROM org_interactions i
				WHERE i.org_id = m.org_id AND i.opportunity_id = m.opportunity_id
					AND i.action = 'dismissed'
			)
		ORDER BY m.composite_score DESC, o.deadline ASC NULLS LAST, o.id ASC
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("listing top matches: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	var matches []models.MatchResult
	for rows.Next() {
		var o models.Opportunity
		var m models.MatchResult
		var dims []byte
		err := rows.Scan(
			&o.ID, &o.SourceID, &o.ExternalID, &o.Title, &o.FunderName, &o.Description,
			&o.AmountMin, &o.AmountMax, &o.Deadline, &o.PublishedAt, &o.LocationScope, &o.SourceType,
			&o.CreatedAt, &o.UpdatedAt,
			&m.ProfileVersion, &m.CompositeScore, &dims,
			&m.Confidence, &m.Explanation, &m.ScoredAt,
		)
		if err != nil {
			return nil, nil, err
		}
		m.OpportunityID = o.ID
		m.OrgID = orgID
		if err := json.Unmarshal(dims, &m.DimensionScores); err != nil {
			return nil, nil, fmt.Errorf("decoding dimension scores: %w", err)
		}
		opps = append(opps, o)
		matches = append(matches, m)
	}
	return opps, matches, rows.Err()
}

// --- discovery runs ---

func (s *Store) CreateDiscoveryRun(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO discovery_runs (org_id) VALUES ($1) RETURNING id`, orgID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating discovery run: %w", err)
	}
	return id, nil
}

func (s *Store) FinishDiscoveryRun(ctx context.Context, run models.DiscoveryRun) error {
	if run.SourcesAttempted == nil {
		run.SourcesAttempted = []string{}
	}
	if run.SourcesSkipped == nil {
		run.SourcesSkipped = []string{}
	}
	if run.SourcesFailed == nil {
		run.SourcesFailed = []models.SourceFailure{}
	}
	failed, err := json.Marshal(run.SourcesFailed)
	if err != nil {
		return fmt.Errorf("encoding source failures: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE discovery_runs SET
			completed_at = NOW(),
			sources_attempted = $2,
			sources_skipped = $3,
			sources_failed = $4,
			newly_added = $5,
			updated = $6,
			from_cache = $7
		WHERE id = $1`,
		run.ID, run.SourcesAttempted, run.SourcesSkipped, failed,
		run.NewlyAdded, run.Updated, run.FromCache)
	if err != nil {
		return fmt.Errorf("finishing discovery run: %w", err)
	}
	return nil
}

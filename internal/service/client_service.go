package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

const (
	defaultClientPageSize = 100
	maxClientPageSize     = 500
)

// ============================================
// Client Lifecycle Manager
// ============================================

type ClientService interface {
	Create(ctx context.Context, actor Identity, req *CreateClientRequest) (*ClientDetail, error)
	// CreateFromFields authorizes the caller before the raw body is parsed.
	CreateFromFields(ctx context.Context, actor Identity, raw map[string]json.RawMessage) (*ClientDetail, error)
	Get(ctx context.Context, actor Identity, clientID string) (*ClientDetail, error)
	List(ctx context.Context, actor Identity, filter repository.ClientFilter) ([]*ClientDetail, error)
	// Update applies a partial field map. An empty diff returns the client
	// unchanged and records nothing.
	Update(ctx context.Context, actor Identity, clientID string, patch *ClientPatch) (*ClientDetail, error)
	// UpdateFromFields looks the client up and authorizes the requested
	// keys before the raw body is parsed.
	UpdateFromFields(ctx context.Context, actor Identity, clientID string, raw map[string]json.RawMessage) (*ClientDetail, error)
	Archive(ctx context.Context, actor Identity, clientID string) (*ClientDetail, error)
	Unarchive(ctx context.Context, actor Identity, clientID string) (*ClientDetail, error)
	History(ctx context.Context, actor Identity, clientID string) ([]*HistoryEntryDetail, error)
}

// UserSummary is the display slice of a user attached to other records.
type UserSummary struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
}

func summarize(u *repository.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// ClientDetail is a client with its resolved owner.
type ClientDetail struct {
	*repository.Client
	Owner *UserSummary
}

type HistoryEntryDetail struct {
	*repository.ClientHistoryEntry
	Actor *UserSummary
}

type clientService struct {
	clientRepo repository.ClientRepository
	ownership  OwnershipRegistry
	history    HistoryLedger
	events     EventPublisher
	log        *zap.Logger
}

func NewClientService(
	clientRepo repository.ClientRepository,
	ownership OwnershipRegistry,
	history HistoryLedger,
	events EventPublisher,
	log *zap.Logger,
) ClientService {
	return &clientService{
		clientRepo: clientRepo,
		ownership:  ownership,
		history:    history,
		events:     events,
		log:        log,
	}
}

// requireIdentity rejects callers without a resolved, active identity
// before any business check runs.
func requireIdentity(actor Identity) error {
	if actor.UserID == "" || !types.IsValidRole(actor.Role) || !actor.IsActive {
		return ErrUnauthenticated
	}
	return nil
}

func snapshotOf(c *repository.Client) ClientSnapshot {
	return ClientSnapshot{OwnerID: c.OwnerID, IsArchived: c.IsArchived}
}

// clientErr maps repository errors to the service taxonomy. Errors that
// already carry a taxonomy sentinel pass through.
func clientErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("client")
	case errors.Is(err, repository.ErrConflict):
		return conflict("a client with this email already exists")
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
		return err
	default:
		return internal(op, err)
	}
}

func (s *clientService) find(ctx context.Context, clientID string) (*repository.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, clientErr("find client", err)
	}
	return client, nil
}

func authorizeCreate(actor Identity) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	return CheckClientAccess(actor, ActionCreate, ClientSnapshot{}, nil)
}

func (s *clientService) Create(ctx context.Context, actor Identity, req *CreateClientRequest) (*ClientDetail, error) {
	if err := authorizeCreate(actor); err != nil {
		return nil, err
	}
	return s.create(ctx, actor, req)
}

func (s *clientService) CreateFromFields(ctx context.Context, actor Identity, raw map[string]json.RawMessage) (*ClientDetail, error) {
	if err := authorizeCreate(actor); err != nil {
		return nil, err
	}
	req, err := ParseCreateClientRequest(raw)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, actor, req)
}

func (s *clientService) create(ctx context.Context, actor Identity, req *CreateClientRequest) (*ClientDetail, error) {
	client, err := newClientFromRequest(req)
	if err != nil {
		return nil, err
	}

	owner, err := s.ownership.Resolve(ctx, client.OwnerID, "owner")
	if err != nil {
		return nil, err
	}

	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, clientErr("create client", err)
	}

	s.history.Record(ctx, client.ID, actor.UserID, types.HistoryCreated,
		fmt.Sprintf("Client created with status %s, assigned to %s", client.LifecycleStatus, owner.Name))

	detail := &ClientDetail{Client: client, Owner: summarize(owner)}
	s.events.BroadcastClientCreated(client.OwnerID, clientPayload(detail), actor.UserID)

	s.log.Info("client created",
		zap.String("client_id", client.ID),
		zap.String("owner_id", client.OwnerID),
		zap.String("actor_id", actor.UserID),
	)
	return detail, nil
}

func newClientFromRequest(req *CreateClientRequest) (*repository.Client, error) {
	name := strings.TrimSpace(req.Name)
	company := strings.TrimSpace(req.CompanyName)
	email := strings.TrimSpace(req.Email)
	ownerID := strings.TrimSpace(req.OwnerID)

	var missing []string
	for field, value := range map[ClientField]string{
		FieldName: name, FieldCompanyName: company, FieldEmail: email, FieldOwnerID: ownerID,
	} {
		if value == "" {
			missing = append(missing, string(field))
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, invalid("missing required fields: " + strings.Join(missing, ", "))
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	c := &repository.Client{
		Email:             email,
		Name:              name,
		CompanyName:       company,
		Phone:             req.Phone,
		Website:           req.Website,
		LifecycleStatus:   orDefault(req.LifecycleStatus, types.LifecycleLead),
		Weightage:         orDefault(req.Weightage, types.WeightageRegular),
		RelationshipLevel: orDefault(req.RelationshipLevel, types.RelationshipWeak),
		Source:            orDefault(req.Source, types.SourceOther),
		IsHighRisk:        req.IsHighRisk,
		LeadScore:         req.LeadScore,
		ExpectedValue:     req.ExpectedValue,
		OwnerID:           ownerID,
		Notes:             req.Notes,
	}

	switch {
	case !types.IsValidLifecycleStatus(c.LifecycleStatus):
		return nil, invalid("invalid lifecycleStatus")
	case !types.IsValidWeightage(c.Weightage):
		return nil, invalid("invalid weightage")
	case !types.IsValidRelationshipLevel(c.RelationshipLevel):
		return nil, invalid("invalid relationshipLevel")
	case !types.IsValidSource(c.Source):
		return nil, invalid("invalid source")
	case c.LeadScore != nil && *c.LeadScore < 0:
		return nil, invalid("leadScore cannot be negative")
	case c.ExpectedValue.Valid && c.ExpectedValue.Decimal.IsNegative():
		return nil, invalid("expectedValue cannot be negative")
	}
	return c, nil
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

func (s *clientService) Get(ctx context.Context, actor Identity, clientID string) (*ClientDetail, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	client, err := s.find(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := CheckClientAccess(actor, ActionView, snapshotOf(client), nil); err != nil {
		return nil, err
	}
	return s.detail(ctx, client)
}

func (s *clientService) List(ctx context.Context, actor Identity, filter repository.ClientFilter) ([]*ClientDetail, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}

	switch {
	case filter.LifecycleStatus != nil && !types.IsValidLifecycleStatus(*filter.LifecycleStatus):
		return nil, invalid("invalid lifecycleStatus filter")
	case filter.Weightage != nil && !types.IsValidWeightage(*filter.Weightage):
		return nil, invalid("invalid weightage filter")
	case filter.Limit < 0 || filter.Offset < 0:
		return nil, invalid("limit and offset cannot be negative")
	}
	if filter.Limit == 0 {
		filter.Limit = defaultClientPageSize
	}
	if filter.Limit > maxClientPageSize {
		filter.Limit = maxClientPageSize
	}

	// Employees only ever see their own book.
	if !actor.IsAdmin() {
		self := actor.UserID
		filter.OwnerID = &self
	}

	clients, err := s.clientRepo.List(ctx, filter)
	if err != nil {
		return nil, internal("list clients", err)
	}

	ownerIDs := make([]string, len(clients))
	for i, c := range clients {
		ownerIDs[i] = c.OwnerID
	}
	owners, err := s.ownership.ResolveMany(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*ClientDetail, len(clients))
	for i, c := range clients {
		out[i] = &ClientDetail{Client: c, Owner: summarize(owners[c.OwnerID])}
	}
	return out, nil
}

// authorizeUpdate resolves the client first, so a missing client is
// NotFound before any permission or field check.
func (s *clientService) authorizeUpdate(ctx context.Context, actor Identity, clientID string, fields []ClientField) (*repository.Client, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	current, err := s.find(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := CheckClientAccess(actor, ActionUpdate, snapshotOf(current), fields); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *clientService) Update(ctx context.Context, actor Identity, clientID string, patch *ClientPatch) (*ClientDetail, error) {
	current, err := s.authorizeUpdate(ctx, actor, clientID, patch.Fields())
	if err != nil {
		return nil, err
	}
	return s.update(ctx, actor, current, patch)
}

func (s *clientService) UpdateFromFields(ctx context.Context, actor Identity, clientID string, raw map[string]json.RawMessage) (*ClientDetail, error) {
	current, err := s.authorizeUpdate(ctx, actor, clientID, RequestedFields(raw))
	if err != nil {
		return nil, err
	}
	patch, err := ParseClientPatch(raw)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, actor, current, patch)
}

func (s *clientService) update(ctx context.Context, actor Identity, current *repository.Client, patch *ClientPatch) (*ClientDetail, error) {
	clientID := current.ID
	fields := patch.Fields()

	diff, err := computeDiff(current, patch)
	if err != nil {
		return nil, err
	}
	if diff.Empty() {
		return s.detail(ctx, current)
	}
	if patch.OwnerID.Set && diff.NewOwnerID != "" {
		if _, err := s.ownership.Resolve(ctx, patch.OwnerID.Value, "owner"); err != nil {
			return nil, err
		}
	}

	// Permission and diff are recomputed against the locked row so the
	// recorded description matches the state this write replaced.
	var applied *clientDiff
	updated, err := s.clientRepo.Update(ctx, clientID, func(locked *repository.Client) (bool, error) {
		if err := CheckClientAccess(actor, ActionUpdate, snapshotOf(locked), fields); err != nil {
			return false, err
		}
		d, err := computeDiff(locked, patch)
		if err != nil || d.Empty() {
			return false, err
		}
		applyPatch(locked, patch, d)
		applied = d
		return true, nil
	})
	if err != nil {
		return nil, clientErr("update client", err)
	}
	if applied == nil {
		return s.detail(ctx, updated)
	}

	s.history.Record(ctx, clientID, actor.UserID, applied.actionType(), applied.describe(s.ownerNames(ctx, applied)))

	detail, err := s.detail(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.events.BroadcastClientUpdated(updated.OwnerID, clientPayload(detail), applied.Fields(), actor.UserID)
	return detail, nil
}

// ownerNames resolves display names for an ownership change. Failures
// fall back to raw ids in the description.
func (s *clientService) ownerNames(ctx context.Context, d *clientDiff) map[string]string {
	names := map[string]string{}
	if !d.has(FieldOwnerID) {
		return names
	}
	var ids []string
	for _, c := range d.Changes {
		if c.Field == FieldOwnerID {
			ids = append(ids, c.From, c.To)
		}
	}
	users, err := s.ownership.ResolveMany(ctx, ids)
	if err != nil {
		s.log.Warn("resolve owner names for history", zap.Error(err))
		return names
	}
	for id, u := range users {
		names[id] = u.Name
	}
	return names
}

func (s *clientService) Archive(ctx context.Context, actor Identity, clientID string) (*ClientDetail, error) {
	return s.setArchived(ctx, actor, clientID, true)
}

func (s *clientService) Unarchive(ctx context.Context, actor Identity, clientID string) (*ClientDetail, error) {
	return s.setArchived(ctx, actor, clientID, false)
}

func (s *clientService) setArchived(ctx context.Context, actor Identity, clientID string, archive bool) (*ClientDetail, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	action, description := ActionUnarchive, "Client unarchived"
	if archive {
		action, description = ActionArchive, "Client archived"
	}

	current, err := s.find(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := CheckClientAccess(actor, action, snapshotOf(current), nil); err != nil {
		return nil, err
	}

	updated, err := s.clientRepo.Update(ctx, clientID, func(locked *repository.Client) (bool, error) {
		if locked.IsArchived == archive {
			if archive {
				return false, conflict("already archived")
			}
			return false, conflict("not archived")
		}
		locked.IsArchived = archive
		return true, nil
	})
	if err != nil {
		return nil, clientErr(string(action)+" client", err)
	}

	s.history.Record(ctx, clientID, actor.UserID, types.HistoryArchived, description)

	detail, err := s.detail(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.events.BroadcastClientArchived(updated.OwnerID, clientPayload(detail), archive, actor.UserID)
	return detail, nil
}

func (s *clientService) History(ctx context.Context, actor Identity, clientID string) ([]*HistoryEntryDetail, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	client, err := s.find(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := CheckClientAccess(actor, ActionView, snapshotOf(client), nil); err != nil {
		return nil, err
	}

	entries, err := s.history.ListFor(ctx, clientID)
	if err != nil {
		return nil, err
	}

	actorIDs := make([]string, len(entries))
	for i, e := range entries {
		actorIDs[i] = e.ActorID
	}
	actors, err := s.ownership.ResolveMany(ctx, actorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*HistoryEntryDetail, len(entries))
	for i, e := range entries {
		out[i] = &HistoryEntryDetail{ClientHistoryEntry: e, Actor: summarize(actors[e.ActorID])}
	}
	return out, nil
}

func (s *clientService) detail(ctx context.Context, c *repository.Client) (*ClientDetail, error) {
	owner, err := s.ownership.Resolve(ctx, c.OwnerID, "owner")
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &ClientDetail{Client: c, Owner: summarize(owner)}, nil
}

func clientPayload(d *ClientDetail) map[string]interface{} {
	payload := map[string]interface{}{
		"id":              d.ID,
		"name":            d.Name,
		"companyName":     d.CompanyName,
		"email":           d.Email,
		"lifecycleStatus": d.LifecycleStatus,
		"weightage":       d.Weightage,
		"isHighRisk":      d.IsHighRisk,
		"isArchived":      d.IsArchived,
		"ownerId":         d.OwnerID,
		"updatedAt":       d.UpdatedAt,
	}
	if d.Owner != nil {
		payload["ownerName"] = d.Owner.Name
	}
	return payload
}

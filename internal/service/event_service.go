package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/shared"
	"github.com/shared-event-wallet/internal/domain/wallet"
	"github.com/shared-event-wallet/internal/logger"
	"github.com/shared-event-wallet/internal/platform/gateway"
)

// CreateEventInput describes a new event
type CreateEventInput struct {
	Name        string
	Description string
	Currency    string
	StartDate   *time.Time
	EndDate     *time.Time
	Rules       *event.SpendingRules
}

// CategoryInput describes a new category
type CategoryInput struct {
	Name              string
	Description       string
	BudgetLimit       *int64
	ApprovalThreshold *int64
	AuthorizedPayers  []uuid.UUID
	ApproverIDs       []uuid.UUID
}

// LimitsInput changes category limits. Nil fields are left unchanged.
type LimitsInput struct {
	BudgetLimit       *int64
	ApprovalThreshold *int64
	AuthorizedPayers  []uuid.UUID
	ApproverIDs       []uuid.UUID
}

// ParticipantView is a participant with directory details
type ParticipantView struct {
	*event.Participant
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// EventDetails is an event as shown to its participants
type EventDetails struct {
	Event        *event.Event      `json:"event"`
	Participants []ParticipantView `json:"participants"`
	Categories   []*event.Category `json:"categories"`
	Wallet       *wallet.Wallet    `json:"wallet"`
}

// CategoryView is a category with its spend and the caller's membership
type CategoryView struct {
	*event.Category
	CurrentSpend int64  `json:"current_spend"`
	Remaining    *int64 `json:"remaining,omitempty"`
	IsMember     bool   `json:"is_member"`
	MemberCount  int    `json:"member_count"`
}

// CategoryAuthorization is what the caller may do in one category
type CategoryAuthorization struct {
	CategoryID        uuid.UUID `json:"category_id"`
	Name              string    `json:"name"`
	IsMember          bool      `json:"is_member"`
	IsAuthorizedPayer bool      `json:"is_authorized_payer"`
	CanApprove        bool      `json:"can_approve"`
	ApprovalThreshold *int64    `json:"approval_threshold,omitempty"`
	RemainingBudget   *int64    `json:"remaining_budget,omitempty"`
}

// Authorization is the caller's spending authority within an event
type Authorization struct {
	Role                  event.Role              `json:"role"`
	CanPay                bool                    `json:"can_pay"`
	MaxExpensePerCategory *int64                  `json:"max_expense_per_category,omitempty"`
	Categories            []CategoryAuthorization `json:"categories"`
}

// EventService manages events, participants and categories
type EventService struct {
	db        TxRunner
	repos     Repositories
	gateway   gateway.PaymentGateway
	directory Directory
	logger    *slog.Logger
}

func NewEventService(logger *slog.Logger, db TxRunner, repos Repositories, gw gateway.PaymentGateway, directory Directory) *EventService {
	return &EventService{
		db:        db,
		repos:     repos,
		gateway:   gw,
		directory: directory,
		logger:    logger.With("component", "event_service"),
	}
}

// CreateEvent creates the event, its creator participant and an empty wallet
func (s *EventService) CreateEvent(ctx context.Context, callerID uuid.UUID, in CreateEventInput) (*event.Event, error) {
	log := logger.FromContext(ctx, s.logger)

	evt, err := event.NewEvent(in.Name, in.Description, in.Currency, callerID, in.Rules)
	if err != nil {
		field := "name"
		if errors.Is(err, event.ErrInvalidCurrency) {
			field = "currency"
		}
		return nil, shared.ValidationError{Field: field, Err: err}
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, shared.ValidationError{Field: "end_date", Err: errors.New("end date is before start date")}
	}
	if limit := evt.Rules.MaxExpensePerCategory; limit != nil && *limit <= 0 {
		return nil, shared.ValidationError{Field: "max_expense_per_category", Err: shared.ErrInvalidAmount}
	}
	evt.StartDate = in.StartDate
	evt.EndDate = in.EndDate

	ref, err := s.gateway.CreateWallet(ctx, evt.ID)
	if err != nil {
		log.Warn("Gateway wallet creation failed, continuing without it", "event_id", evt.ID.String(), "error", err)
	}
	evt.GatewayWalletRef = ref

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Events.Create(ctx, evt); err != nil {
			return err
		}
		if err := repos.Events.AddParticipant(ctx, event.NewParticipant(evt.ID, callerID, event.RoleCreator)); err != nil {
			return err
		}
		return repos.Wallets.Create(ctx, wallet.NewWallet(evt.ID, evt.Currency))
	})
	if err != nil {
		return nil, err
	}

	log.Info("Event created", "event_id", evt.ID.String(), "creator_id", callerID.String())
	return evt, nil
}

// JoinEvent adds the caller as a member of an active event
func (s *EventService) JoinEvent(ctx context.Context, callerID, eventID uuid.UUID) (*event.Participant, error) {
	evt, err := s.repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !evt.IsActive() {
		return nil, shared.StateConflictError{Reason: "Cannot join an inactive event", Err: shared.ErrEventNotActive}
	}

	p := event.NewParticipant(eventID, callerID, event.RoleMember)
	if err := s.repos.Events.AddParticipant(ctx, p); err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Participant joined", "event_id", eventID.String(), "user_id", callerID.String())
	return p, nil
}

func (s *EventService) ListMyEvents(ctx context.Context, callerID uuid.UUID) ([]*event.Event, error) {
	return s.repos.Events.ListByParticipant(ctx, callerID)
}

// GetEvent returns the event with participants, categories and wallet
func (s *EventService) GetEvent(ctx context.Context, callerID, eventID uuid.UUID) (*EventDetails, error) {
	evt, _, err := requireParticipant(ctx, s.repos, eventID, callerID)
	if err != nil {
		return nil, err
	}

	participants, err := s.repos.Events.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	categories, err := s.repos.Categories.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	w, err := s.repos.Wallets.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(participants))
	for i, p := range participants {
		ids[i] = p.UserID
	}
	profiles := resolveProfiles(ctx, s.directory, s.logger, ids)

	views := make([]ParticipantView, len(participants))
	for i, p := range participants {
		views[i] = ParticipantView{Participant: p, Name: profiles[p.UserID].Name, Email: profiles[p.UserID].Email}
	}

	return &EventDetails{Event: evt, Participants: views, Categories: categories, Wallet: w}, nil
}

// CreateCategory lets any participant of an active event open a category; the
// creator joins it immediately.
func (s *EventService) CreateCategory(ctx context.Context, callerID, eventID uuid.UUID, in CategoryInput) (*event.Category, error) {
	if err := validateLimit("budget_limit", in.BudgetLimit); err != nil {
		return nil, err
	}
	if err := validateLimit("approval_threshold", in.ApprovalThreshold); err != nil {
		return nil, err
	}

	c, err := event.NewCategory(eventID, in.Name, in.Description, callerID)
	if err != nil {
		return nil, shared.ValidationError{Field: "name", Err: err}
	}
	c.BudgetLimit = in.BudgetLimit
	c.ApprovalThreshold = in.ApprovalThreshold
	if in.AuthorizedPayers != nil {
		c.AuthorizedPayers = in.AuthorizedPayers
	}
	if in.ApproverIDs != nil {
		c.ApproverIDs = in.ApproverIDs
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)

		evt, _, err := requireParticipant(ctx, repos, eventID, callerID)
		if err != nil {
			return err
		}
		if !evt.IsActive() {
			return shared.StateConflictError{Err: shared.ErrEventNotActive}
		}

		if err := repos.Categories.Create(ctx, c); err != nil {
			return err
		}

		m := event.Membership{CategoryID: c.ID, UserID: callerID, JoinedAt: c.CreatedAt}
		if err := repos.Categories.AddMember(ctx, &m); err != nil {
			return err
		}
		c.Members[callerID] = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Category created", "event_id", eventID.String(), "category_id", c.ID.String())
	return c, nil
}

// JoinCategory opens a new membership; rejoining after leaving keeps the old row
func (s *EventService) JoinCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) (*event.Membership, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}

	c, err := s.repos.Categories.GetByID(ctx, eventID, categoryID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, shared.StateConflictError{Err: shared.ErrCategoryNotActive}
	}
	if c.IsMember(callerID) {
		return nil, shared.StateConflictError{Reason: "Already a member of this category"}
	}

	m := &event.Membership{CategoryID: categoryID, UserID: callerID, JoinedAt: time.Now().UTC()}
	if err := s.repos.Categories.AddMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// LeaveCategory ends the caller's active membership. Paid expenses keep their
// participant snapshot.
func (s *EventService) LeaveCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) error {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return err
	}
	if _, err := s.repos.Categories.GetByID(ctx, eventID, categoryID); err != nil {
		return err
	}
	return s.repos.Categories.EndMembership(ctx, categoryID, callerID, time.Now().UTC())
}

func (s *EventService) CloseCategory(ctx context.Context, callerID, eventID, categoryID uuid.UUID) error {
	if _, err := requireCreator(ctx, s.repos, eventID, callerID, false); err != nil {
		return err
	}
	c, err := s.repos.Categories.GetByID(ctx, eventID, categoryID)
	if err != nil {
		return err
	}
	if !c.IsActive() {
		return shared.StateConflictError{Reason: "Category is already closed", Err: shared.ErrCategoryNotActive}
	}
	return s.repos.Categories.UpdateStatus(ctx, categoryID, event.CategoryStatusClosed)
}

// UpdateCategoryLimits is reserved to the event creator
func (s *EventService) UpdateCategoryLimits(ctx context.Context, callerID, eventID, categoryID uuid.UUID, in LimitsInput) (*event.Category, error) {
	if err := validateLimit("budget_limit", in.BudgetLimit); err != nil {
		return nil, err
	}
	if err := validateLimit("approval_threshold", in.ApprovalThreshold); err != nil {
		return nil, err
	}
	if _, err := requireCreator(ctx, s.repos, eventID, callerID, false); err != nil {
		return nil, err
	}

	c, err := s.repos.Categories.GetByID(ctx, eventID, categoryID)
	if err != nil {
		return nil, err
	}
	if in.BudgetLimit != nil {
		c.BudgetLimit = in.BudgetLimit
	}
	if in.ApprovalThreshold != nil {
		c.ApprovalThreshold = in.ApprovalThreshold
	}
	if in.AuthorizedPayers != nil {
		c.AuthorizedPayers = in.AuthorizedPayers
	}
	if in.ApproverIDs != nil {
		c.ApproverIDs = in.ApproverIDs
	}
	c.UpdatedAt = time.Now().UTC()

	if err := s.repos.Categories.UpdateLimits(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCategories returns every category with its completed spend
func (s *EventService) ListCategories(ctx context.Context, callerID, eventID uuid.UUID) ([]CategoryView, error) {
	if _, _, err := requireParticipant(ctx, s.repos, eventID, callerID); err != nil {
		return nil, err
	}

	categories, err := s.repos.Categories.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	spend, err := s.repos.Transactions.SpendByCategory(ctx, eventID)
	if err != nil {
		return nil, err
	}

	views := make([]CategoryView, len(categories))
	for i, c := range categories {
		views[i] = CategoryView{
			Category:     c,
			CurrentSpend: spend[c.ID],
			Remaining:    remaining(c.BudgetLimit, spend[c.ID]),
			IsMember:     c.IsMember(callerID),
			MemberCount:  len(c.Members),
		}
	}
	return views, nil
}

// MyAuthorization explains what the caller may spend and approve
func (s *EventService) MyAuthorization(ctx context.Context, callerID, eventID uuid.UUID) (*Authorization, error) {
	evt, p, err := requireParticipant(ctx, s.repos, eventID, callerID)
	if err != nil {
		return nil, err
	}

	categories, err := s.repos.Categories.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	spend, err := s.repos.Transactions.SpendByCategory(ctx, eventID)
	if err != nil {
		return nil, err
	}

	auth := &Authorization{
		Role:                  p.Role,
		CanPay:                evt.IsActive() && evt.Rules.AllowsRole(p.Role),
		MaxExpensePerCategory: evt.Rules.MaxExpensePerCategory,
		Categories:            make([]CategoryAuthorization, 0, len(categories)),
	}
	for _, c := range categories {
		if !c.IsActive() {
			continue
		}
		auth.Categories = append(auth.Categories, CategoryAuthorization{
			CategoryID:        c.ID,
			Name:              c.Name,
			IsMember:          c.IsMember(callerID),
			IsAuthorizedPayer: c.IsAuthorizedPayer(callerID),
			CanApprove:        evt.IsCreator(callerID) || c.IsApprover(callerID),
			ApprovalThreshold: c.ApprovalThreshold,
			RemainingBudget:   remaining(c.BudgetLimit, spend[c.ID]),
		})
	}
	return auth, nil
}

func validateLimit(field string, v *int64) error {
	if v != nil && *v <= 0 {
		return shared.ValidationError{Field: field, Err: shared.ErrInvalidAmount}
	}
	return nil
}

func remaining(limit *int64, spent int64) *int64 {
	if limit == nil {
		return nil
	}
	left := *limit - spent
	if left < 0 {
		left = 0
	}
	return &left
}

// resolveProfiles is best effort; a directory outage only drops names
func resolveProfiles(ctx context.Context, directory Directory, log *slog.Logger, ids []uuid.UUID) map[uuid.UUID]shared.UserProfile {
	if directory == nil || len(ids) == 0 {
		return map[uuid.UUID]shared.UserProfile{}
	}
	profiles, err := directory.GetByIDs(ctx, ids)
	if err != nil {
		logger.FromContext(ctx, log).Warn("Failed to resolve user profiles", "error", err)
		return map[uuid.UUID]shared.UserProfile{}
	}
	return profiles
}

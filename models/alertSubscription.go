package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
)

type AlertSubscription struct {
	Id          int        `json:"id"`
	Email       string     `json:"email"`
	Active      bool       `json:"active"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
	Row         int        `json:"-"`
}

type NewAlertSubscription struct {
	Email  string `json:"email" validate:"required,email"`
	Active *bool  `json:"active"`
}

// SubscriptionRegistry stores who receives low-stock alerts.
type SubscriptionRegistry struct {
	subscriptions table
	logger        *logrus.Logger
	now           func() time.Time
}

func NewSubscriptionRegistry(reader *tabular.CachedReader, logger *logrus.Logger) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		subscriptions: newTable(SheetSubscriptions, reader),
		logger:        logger,
		now:           time.Now,
	}
}

// Add registers an email; the same address (case-insensitive) cannot be registered twice.
func (r *SubscriptionRegistry) Add(ctx context.Context, input NewAlertSubscription) (*AlertSubscription, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, validationFromTags(err)
	}

	values, headers, records, err := r.subscriptions.fresh(ctx)
	if err != nil {
		config.LogError(r.logger, "models", "SubscriptionRegistry.Add", "read subscriptions", input.Email, err)
		return nil, err
	}
	for _, rec := range records {
		if strings.EqualFold(utils.CellString(rec.Get(ColEmail)), input.Email) {
			return nil, NewValidationError("email", "email is already subscribed")
		}
	}

	sub := &AlertSubscription{
		Id:     len(values),
		Email:  input.Email,
		Active: utils.DereferencePtr(input.Active, true),
		Row:    len(values) + 1,
	}
	fields := map[string]interface{}{
		ColSubscriptionId: sub.Id,
		ColEmail:          sub.Email,
		ColActive:         sub.Active,
		ColLastChecked:    "",
	}
	if err := r.subscriptions.append(ctx, headers, fields); err != nil {
		config.LogError(r.logger, "models", "SubscriptionRegistry.Add", "append subscription", input.Email, err)
		return nil, err
	}
	return sub, nil
}

func (r *SubscriptionRegistry) Load(ctx context.Context, token int64) ([]*AlertSubscription, error) {
	records, err := r.subscriptions.cached(ctx, token)
	if err != nil {
		return []*AlertSubscription{}, err
	}
	return subscriptionsFromRecords(records), nil
}

func (r *SubscriptionRegistry) List(ctx context.Context, token int64) []*AlertSubscription {
	subs, err := r.Load(ctx, token)
	if err != nil {
		config.LogError(r.logger, "models", "SubscriptionRegistry.List", "load subscriptions", token, err)
		return []*AlertSubscription{}
	}
	return subs
}

// LoadFresh bypasses the cache; row numbers of the result are safe to write to.
func (r *SubscriptionRegistry) LoadFresh(ctx context.Context) ([]*AlertSubscription, error) {
	_, _, records, err := r.subscriptions.fresh(ctx)
	if err != nil {
		return []*AlertSubscription{}, err
	}
	return subscriptionsFromRecords(records), nil
}

func Active(subs []*AlertSubscription) []*AlertSubscription {
	out := make([]*AlertSubscription, 0, len(subs))
	for _, s := range subs {
		if s.Active && s.Email != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *SubscriptionRegistry) SetActive(ctx context.Context, id int, active bool) (*AlertSubscription, error) {
	_, headers, records, err := r.subscriptions.fresh(ctx)
	if err != nil {
		return nil, err
	}
	col := tabular.ColumnIndex(headers, ColActive)
	if col == 0 {
		return nil, &NotFoundError{Kind: "column", Key: ColActive}
	}
	for _, sub := range subscriptionsFromRecords(records) {
		if sub.Id != id {
			continue
		}
		if err := r.subscriptions.updateCell(ctx, sub.Row, col, active); err != nil {
			config.LogError(r.logger, "models", "SubscriptionRegistry.SetActive", "write active", id, err)
			return nil, err
		}
		sub.Active = active
		return sub, nil
	}
	return nil, &NotFoundError{Kind: "subscription", Key: fmt.Sprint(id)}
}

// TouchLastChecked stamps Last_Checked on the given rows. Every row is attempted; failures are joined.
func (r *SubscriptionRegistry) TouchLastChecked(ctx context.Context, subs []*AlertSubscription) error {
	if len(subs) == 0 {
		return nil
	}
	values, err := r.subscriptions.reader.Store().Values(ctx, r.subscriptions.name())
	if err != nil {
		return err
	}
	col := tabular.ColumnIndex(tabular.HeaderOf(values), ColLastChecked)
	if col == 0 {
		return &NotFoundError{Kind: "column", Key: ColLastChecked}
	}
	stamp := r.now()
	var errs []error
	for _, sub := range subs {
		if err := r.subscriptions.updateCell(ctx, sub.Row, col, cellTime(stamp)); err != nil {
			errs = append(errs, fmt.Errorf("subscription %d: %w", sub.Id, err))
			continue
		}
		t := stamp
		sub.LastChecked = &t
	}
	return errors.Join(errs...)
}

func subscriptionsFromRecords(records []tabular.Record) []*AlertSubscription {
	subs := make([]*AlertSubscription, 0, len(records))
	for _, rec := range records {
		sub := &AlertSubscription{
			Id:     utils.CellInt(rec.Get(ColSubscriptionId), 0),
			Email:  utils.CellString(rec.Get(ColEmail)),
			Active: utils.CellBool(rec.Get(ColActive), true),
			Row:    rec.Row,
		}
		if t, ok := utils.ParseTimestamp(rec.Get(ColLastChecked)); ok {
			sub.LastChecked = &t
		}
		subs = append(subs, sub)
	}
	return subs
}

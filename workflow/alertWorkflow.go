package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/notification"
)

const (
	deliveryTimeout = 30 * time.Second
	dispatchTimeout = 2 * time.Minute
)

type DeliveryResult struct {
	Email   string `json:"email"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type DispatchReport struct {
	CheckedAt  time.Time                `json:"checkedAt"`
	Critical   []models.CriticalProduct `json:"critical"`
	Deliveries []DeliveryResult         `json:"deliveries"`
}

// AlertDispatcher sends the critical stock report to every active subscription.
// Delivery failures are collected per recipient and never returned as errors.
type AlertDispatcher struct {
	catalog       *models.Catalog
	subscriptions *models.SubscriptionRegistry
	sink          notification.Sink
	logger        *logrus.Logger
	metrics       *Metrics
	now           func() time.Time

	wg sync.WaitGroup
}

func NewAlertDispatcher(catalog *models.Catalog, subscriptions *models.SubscriptionRegistry, sink notification.Sink,
	logger *logrus.Logger, metrics *Metrics) *AlertDispatcher {
	return &AlertDispatcher{
		catalog:       catalog,
		subscriptions: subscriptions,
		sink:          sink,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

// Notify sends one alert per active subscription covering all critical products.
func (d *AlertDispatcher) Notify(ctx context.Context, critical []models.CriticalProduct, subscriptions []*models.AlertSubscription) []DeliveryResult {
	results := make([]DeliveryResult, 0)
	if len(critical) == 0 {
		return results
	}
	for _, sub := range models.Active(subscriptions) {
		results = append(results, d.deliver(ctx, notification.Alert{
			Recipient:   sub.Email,
			Products:    critical,
			GeneratedAt: d.now(),
		}))
	}
	return results
}

func (d *AlertDispatcher) deliver(ctx context.Context, alert notification.Alert) (res DeliveryResult) {
	res.Email = alert.Recipient
	sinkName := d.sink.Name()
	defer func() {
		if r := recover(); r != nil {
			res.OK = false
			res.Message = fmt.Sprintf("notification sink panicked: %v", r)
			config.LogError(d.logger, "workflow", "AlertDispatcher.deliver", "sink panic", alert.Recipient, fmt.Errorf("%v", r))
			d.metrics.alert(sinkName, "failed")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if err := d.sink.Send(ctx, alert); err != nil {
		config.LogWarn(d.logger, "workflow", "AlertDispatcher.deliver", "send alert", alert.Recipient, err)
		d.metrics.alert(sinkName, "failed")
		res.Message = err.Error()
		return res
	}
	d.metrics.alert(sinkName, "sent")
	res.OK = true
	res.Message = fmt.Sprintf("sent %d products via %s", len(alert.Products), sinkName)
	return res
}

// NotifyCurrent reads the catalog and subscriptions fresh, notifies, then stamps Last_Checked
// on the subscriptions that were attempted. Only the reads can fail it.
func (d *AlertDispatcher) NotifyCurrent(ctx context.Context) (*DispatchReport, error) {
	ctx, span := tracer.Start(ctx, "AlertDispatcher.NotifyCurrent")
	defer span.End()

	products, err := d.catalog.LoadFresh(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	subs, err := d.subscriptions.LoadFresh(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &DispatchReport{CheckedAt: d.now(), Critical: models.Critical(products)}
	d.metrics.critical(len(report.Critical))
	report.Deliveries = d.Notify(ctx, report.Critical, subs)
	span.SetAttributes(
		attribute.Int("alerts.critical", len(report.Critical)),
		attribute.Int("alerts.deliveries", len(report.Deliveries)),
	)

	if len(report.Deliveries) > 0 {
		if err := d.subscriptions.TouchLastChecked(ctx, models.Active(subs)); err != nil {
			config.LogWarn(d.logger, "workflow", "AlertDispatcher.NotifyCurrent", "stamp last checked", nil, err)
		}
	}
	return report, nil
}

// DispatchAsync runs NotifyCurrent in the background, detached from ctx's cancellation.
func (d *AlertDispatcher) DispatchAsync(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(base, dispatchTimeout)
		defer cancel()

		report, err := d.NotifyCurrent(ctx)
		if err != nil {
			config.LogError(d.logger, "workflow", "AlertDispatcher.DispatchAsync", "notify current", nil, err)
			return
		}
		if d.logger == nil {
			return
		}
		failed := 0
		for _, r := range report.Deliveries {
			if !r.OK {
				failed++
			}
		}
		d.logger.WithFields(logrus.Fields{
			"module":     "workflow",
			"critical":   len(report.Critical),
			"deliveries": len(report.Deliveries),
			"failed":     failed,
		}).Info("low stock dispatch finished")
	}()
}

// Wait blocks until background dispatches finish.
func (d *AlertDispatcher) Wait() {
	d.wg.Wait()
}

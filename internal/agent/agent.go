// Package agent hosts the background worker for one storefront origin. It owns the
// runtime, the in-process browser platform and the HTTP surface pages and the push
// server talk to.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-push/internal/common/config"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/observability"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/diagnostics"
	"storefront-push/internal/models"
	"storefront-push/internal/platform"
	"storefront-push/internal/platform/memory"
	"storefront-push/internal/subscription"
	"storefront-push/pkg/notification"

	"storefront-push/internal/workers/lifecycle/activate"
	"storefront-push/internal/workers/lifecycle/install"
	clientmessage "storefront-push/internal/workers/messaging/client-message"
	fetchintercept "storefront-push/internal/workers/network/fetch-intercept"
	notificationclick "storefront-push/internal/workers/push/notification-click"
	pushreceive "storefront-push/internal/workers/push/push-receive"
	subscriptionchange "storefront-push/internal/workers/push/subscription-change"
)

// Collaborator is the push server as seen from the device side.
type Collaborator interface {
	subscription.Server
	subscriptionchange.Rotator
}

type Agent struct {
	config       *config.Config
	runtime      *swruntime.Runtime
	permissions  *memory.Permissions
	push         *memory.PushManager
	notifier     *memory.NotificationCenter
	clients      *memory.Clients
	registration *memory.Registration
	manager      *subscription.Manager
	diagnostics  *diagnostics.LocalAgent
	fetcher      platform.Fetcher
	endpointBase string
	logger       logger.Logger
}

var eventKinds = []swruntime.EventKind{
	swruntime.EventInstall,
	swruntime.EventActivate,
	swruntime.EventFetch,
	swruntime.EventPush,
	swruntime.EventNotificationClick,
	swruntime.EventPushSubscriptionChange,
	swruntime.EventMessage,
}

// New builds the worker and registers every enabled handler. assets is the precache
// list for install.
func New(
	cfg *config.Config,
	caches platform.CacheStorage,
	fetcher platform.Fetcher,
	server Collaborator,
	assets []string,
	obs *observability.Observability,
	log logger.Logger,
) (*Agent, error) {
	var opts []swruntime.Option
	for _, kind := range eventKinds {
		wcfg := config.GetWorkerConfig(cfg, string(kind))
		opts = append(opts, swruntime.WithTimeout(kind, config.GetDuration(wcfg.Timeout)))
	}

	clients, err := memory.NewClients(cfg.Agent.Origin)
	if err != nil {
		return nil, fmt.Errorf("agent origin: %w", err)
	}

	a := &Agent{
		config:       cfg,
		runtime:      swruntime.New(fmt.Sprintf("%s-v%d", cfg.App.Name, cfg.Cache.Version), obs, log, opts...),
		permissions:  memory.NewPermissions(models.PermissionDefault, models.PermissionState(cfg.Agent.Permission)),
		notifier:     memory.NewNotificationCenter(),
		clients:      clients,
		fetcher:      fetcher,
		endpointBase: strings.TrimRight(cfg.Agent.PublicURL, "/") + "/sw/push",
		logger:       log.WithFields(map[string]interface{}{"component": "agent"}),
	}
	a.push = memory.NewPushManager(a.endpointBase)
	a.registration = memory.NewRegistration(a.runtime, a.push, a.notifier)
	registrations := &memory.Provider{Reg: a.registration}

	a.manager = subscription.NewManager(
		&subscription.Config{
			ApplicationServerKey: cfg.Push.VAPIDPublicKey,
			UserType:             "admin",
		},
		platform.Capabilities{ServiceWorker: true, Push: true, Notifications: true},
		a.permissions, registrations, server, log,
	)
	a.diagnostics = diagnostics.NewLocalAgent(a.manager, registrations, a.runtime)

	if err := a.registerHandlers(caches, server, assets, log); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) registerHandlers(caches platform.CacheStorage, server Collaborator, assets []string, log logger.Logger) error {
	cfg := a.config
	origin := strings.TrimRight(cfg.Agent.Origin, "/")
	timeout := func(name string) time.Duration {
		return config.GetDuration(config.GetWorkerConfig(cfg, name).Timeout)
	}

	if config.IsWorkerEnabled(cfg, install.TaskType) {
		c := install.LoadConfig()
		c.CacheName = cfg.Cache.Name()
		c.Origin = origin
		c.Assets = assets
		c.Timeout = timeout(install.TaskType)
		a.runtime.Register(swruntime.EventInstall, install.NewHandler(c, caches, a.fetcher, a.runtime, log))
	}

	if config.IsWorkerEnabled(cfg, activate.TaskType) {
		c := activate.LoadConfig()
		c.CacheName = cfg.Cache.Name()
		c.Timeout = timeout(activate.TaskType)
		a.runtime.Register(swruntime.EventActivate, activate.NewHandler(c, caches, a.clients, log))
	}

	if config.IsWorkerEnabled(cfg, fetchintercept.TaskType) {
		c := fetchintercept.LoadConfig()
		c.Origin = origin
		c.CacheName = cfg.Cache.Name()
		c.AdminPrefix = cfg.Cache.AdminPrefix
		c.APIPrefix = cfg.Cache.APIPrefix
		c.ShellPath = cfg.Cache.AdminPrefix
		c.Timeout = timeout(fetchintercept.TaskType)
		h, err := fetchintercept.NewHandler(c, caches, a.fetcher, log)
		if err != nil {
			return fmt.Errorf("fetch handler: %w", err)
		}
		a.runtime.RegisterFetch(h)
	}

	if config.IsWorkerEnabled(cfg, pushreceive.TaskType) {
		c := pushreceive.LoadConfig()
		c.Defaults = notification.Defaults{
			Title: cfg.Push.DefaultTitle,
			Body:  cfg.Push.DefaultBody,
			URL:   cfg.Push.DefaultURL,
		}
		c.Display = notification.Display{
			Icon:               cfg.Push.Display.Icon,
			Badge:              cfg.Push.Display.Badge,
			Vibrate:            cfg.Push.Display.Vibrate,
			RequireInteraction: cfg.Push.Display.RequireInteraction,
			Renotify:           cfg.Push.Display.Renotify,
			OpenActionTitle:    cfg.Push.Display.OpenActionTitle,
			CloseActionTitle:   cfg.Push.Display.CloseActionTitle,
		}
		c.Timeout = timeout(pushreceive.TaskType)
		a.runtime.Register(swruntime.EventPush, pushreceive.NewHandler(c, a.notifier, log))
	}

	if config.IsWorkerEnabled(cfg, notificationclick.TaskType) {
		c := notificationclick.LoadConfig()
		c.Origin = origin
		c.AdminPrefix = cfg.Cache.AdminPrefix
		c.DefaultURL = cfg.Push.DefaultURL
		c.Timeout = timeout(notificationclick.TaskType)
		h, err := notificationclick.NewHandler(c, a.notifier, a.clients, log)
		if err != nil {
			return fmt.Errorf("notificationclick handler: %w", err)
		}
		a.runtime.Register(swruntime.EventNotificationClick, h)
	}

	if config.IsWorkerEnabled(cfg, subscriptionchange.TaskType) {
		c := subscriptionchange.LoadConfig()
		c.ApplicationServerKey = cfg.Push.VAPIDPublicKey
		c.Timeout = timeout(subscriptionchange.TaskType)
		a.runtime.Register(swruntime.EventPushSubscriptionChange, subscriptionchange.NewHandler(c, a.push, server, log))
	}

	if config.IsWorkerEnabled(cfg, clientmessage.TaskType) {
		c := clientmessage.LoadConfig()
		c.Version = a.runtime.Version()
		c.Timeout = timeout(clientmessage.TaskType)
		a.runtime.Register(swruntime.EventMessage, clientmessage.NewHandler(c, a.runtime, log))
	}

	return nil
}

// Start installs and activates the worker.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.runtime.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	a.logger.Info("worker active", map[string]interface{}{
		"version": a.runtime.Version(),
		"state":   a.runtime.Status(),
	})
	return nil
}

// Stop terminates the worker, waiting for pending event work until ctx ends.
func (a *Agent) Stop(ctx context.Context) error {
	return a.runtime.Terminate(ctx)
}

// Ready reports whether the worker is activated.
func (a *Agent) Ready() bool { return a.runtime.Active() }

func (a *Agent) Runtime() *swruntime.Runtime { return a.runtime }

func (a *Agent) Notifications() *memory.NotificationCenter { return a.notifier }

func (a *Agent) Clients() *memory.Clients { return a.clients }

func (a *Agent) PushManager() *memory.PushManager { return a.push }

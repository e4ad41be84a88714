package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/edahouse/shopcore/internal/bus"
	"github.com/edahouse/shopcore/internal/notify"
	"github.com/edahouse/shopcore/internal/platform"
	"github.com/edahouse/shopcore/internal/push"
	"github.com/edahouse/shopcore/internal/release"
	"github.com/edahouse/shopcore/internal/shop/cart"
	"github.com/edahouse/shopcore/internal/shop/model"
	"github.com/edahouse/shopcore/internal/shop/pricing"
	"github.com/edahouse/shopcore/internal/shop/repo"
	"github.com/edahouse/shopcore/internal/storefront"
	"github.com/edahouse/shopcore/internal/update"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// runtime holds what every storefront command shares.
type runtime struct {
	cfg     AppConfig
	rdb     *redis.Client
	local   platform.Storage
	session platform.Storage
	events  *bus.Bus
	bridge  *bus.RedisBridge
	nav     *platform.ExecNavigator
}

// openRuntime connects to Redis for storage and cross-process events. Without Redis the
// storefront state lives in memory for the life of the command.
func openRuntime(ctx context.Context, cfg AppConfig) *runtime {
	rt := &runtime{
		cfg:    cfg,
		events: bus.New(16),
		nav:    platform.NewExecNavigator(cfg.Update.ReloadCommand, cfg.Shop.BaseURL, cfg.Shop.UserAgent, logx.Component("navigator")),
	}
	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		logx.Warn().Err(err).Msg("redis unavailable, storefront state is kept in memory")
		rt.local = platform.NewMemoryStorage()
		rt.session = platform.NewMemoryStorage()
		return rt
	}
	rt.rdb = rdb
	rt.local = platform.NewRedisStorage(rdb, cfg.Redis.Namespace, "local")
	rt.session = platform.NewRedisStorage(rdb, cfg.Redis.Namespace, "session")
	rt.bridge = bus.NewRedisBridge(rdb, cfg.Redis.Namespace, 64)
	return rt
}

// publisher is the local bus, plus Redis when connected.
func (rt *runtime) publisher() bus.Publisher {
	if rt.bridge == nil {
		return rt.events
	}
	return bus.Fanout{rt.events, rt.bridge}
}

func (rt *runtime) Close() {
	if rt.bridge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rt.bridge.Drain(ctx); err != nil {
			logx.Warn().Err(err).Msg("failed to flush bus messages")
		}
	}
	if rt.rdb != nil {
		_ = rt.rdb.Close()
	}
}

func (rt *runtime) purger() *update.Purger {
	return update.NewPurger(
		platform.DirCaches{Root: rt.cfg.Update.CacheDir},
		platform.DirDatabases{Root: rt.cfg.Update.DatabaseDir},
		platform.NoServiceWorkers{},
		rt.local,
		rt.session,
	)
}

func (rt *runtime) cartStore(ctx context.Context) (*cart.Store, error) {
	store := cart.NewStore(repo.NewStorageCartRepository(rt.local), rt.publisher())
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (rt *runtime) delivery() pricing.DeliveryPolicy {
	return pricing.ParseDeliveryPolicy(rt.cfg.Shop.DeliveryFee, rt.cfg.Shop.FreeDeliveryFrom)
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// withRuntime runs fn with a runtime opened for the command and closed afterwards.
func withRuntime(cfg AppConfig, fn func(ctx context.Context, c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, stop := signalContext(c)
		defer stop()
		rt := openRuntime(ctx, cfg)
		defer rt.Close()
		return fn(ctx, c, rt)
	}
}

func newApp(cfg AppConfig) *cli.App {
	return &cli.App{
		Name:  "shopcore",
		Usage: "storefront cart, update reconciliation and release tooling",
		Commands: []*cli.Command{
			serveCommand(cfg),
			watchCommand(cfg),
			eventsCommand(cfg),
			clearCacheCommand(cfg),
			stampCommand(cfg),
			cartCommand(cfg),
			pushCommand(cfg),
			inboxCommand(cfg),
		},
	}
}

func serveCommand(cfg AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve /api/version and /api/health",
		Action: withRuntime(cfg, func(ctx context.Context, _ *cli.Context, rt *runtime) error {
			srv := release.NewServer(cfg.Release, cfg.Environment().String(), nil)
			if rt.rdb != nil {
				srv.AddCheck("redis", func(ctx context.Context) error {
					return rt.rdb.Ping(ctx).Err()
				})
			}
			return srv.ListenAndServe(ctx)
		}),
	}
}

func watchCommand(cfg AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "poll the storefront version and reload into new builds",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "permission", Value: string(push.PermissionDefault), Usage: "notification permission state"},
			&cli.BoolFlag{Name: "standalone", Usage: "run as an installed app"},
		},
		Action: withRuntime(cfg, func(ctx context.Context, c *cli.Context, rt *runtime) error {
			client, err := storefront.New(cfg.Shop)
			if err != nil {
				return err
			}
			rt.nav.IsStandalone = c.Bool("standalone")
			variant := update.DetectVariant(cfg.Shop.UserAgent)
			events := rt.publisher()

			reconciler := update.New(update.Deps{
				Source:    client,
				Local:     rt.local,
				Navigator: rt.nav,
				Purger:    rt.purger(),
				Events:    events,
			}, update.OptionsFrom(cfg.Update, variant))

			inbox := notify.NewInbox(rt.local, events, nil)
			policy := push.NewPromptPolicy(rt.local, rt.session, rt.nav, cfg.Shop.UserRole, push.Permission(c.String("permission")))
			if _, err := policy.TrackVisit(ctx); err != nil {
				logx.Warn().Err(err).Msg("failed to track visit")
			}

			workerMessages, unsubscribeWorker := rt.events.Subscribe(bus.TopicWorkerMessage)
			defer unsubscribeWorker()
			triggers, unsubscribeTriggers := rt.events.Subscribe(bus.TopicPromptTrigger)
			defer unsubscribeTriggers()

			logx.Info().Str("variant", variant.String()).Dur("interval", update.OptionsFrom(cfg.Update, variant).Interval).Msg("watching for updates")

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return reconciler.Run(ctx) })
			g.Go(func() error { return inbox.Follow(ctx, workerMessages) })
			g.Go(func() error {
				return policy.Follow(ctx, triggers, func(_ context.Context, action string) {
					logx.Info().Str("action", action).Msg("asking for push permission")
				})
			})
			if rt.bridge != nil {
				g.Go(func() error { return rt.bridge.Run(ctx) })
				g.Go(func() error { return rt.bridge.Listen(ctx, rt.rdb, rt.events) })
			}
			return ignoreCanceled(g.Wait())
		}),
	}
}

// eventPrinter writes every message it receives to stdout.
type eventPrinter struct{}

func (eventPrinter) Publish(msg bus.Message) {
	fmt.Printf("%s %s %v\n", msg.At.Format(time.RFC3339), msg.Topic, msg.Data)
}

func eventsCommand(cfg AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "print storefront events relayed over redis",
		Action: withRuntime(cfg, func(ctx context.Context, _ *cli.Context, rt *runtime) error {
			if rt.bridge == nil {
				return fmt.Errorf("events need redis at %s", cfg.Redis.URL)
			}
			return ignoreCanceled(rt.bridge.Listen(ctx, rt.rdb, eventPrinter{}))
		}),
	}
}

func clearCacheCommand(cfg AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "clear-cache",
		Usage: "purge every cache and reload",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "standalone", Usage: "run as an installed app"},
		},
		Action: withRuntime(cfg, func(ctx context.Context, c *cli.Context, rt *runtime) error {
			rt.nav.IsStandalone = c.Bool("standalone")
			manual := &update.ManualClear{
				Purger:        rt.purger(),
				Workers:       platform.NoServiceWorkers{},
				Navigator:     rt.nav,
				Alerter:       platform.LogAlerter{Log: logx.Component("alert")},
				FallbackDelay: cfg.Update.FallbackDelay,
			}
			return manual.Run(ctx)
		}),
	}
}

func stampCommand(cfg AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "stamp",
		Usage: "stamp the service worker and .env with a new build time",
		Action: func(*cli.Context) error {
			out, err := release.Stamp(cfg.Release, time.Now())
			if err != nil {
				return err
			}
			logx.Info().
				Str("timestamp", out.Timestamp).
				Str("buildTime", out.BuildTime).
				Str("appHash", out.AppHash).
				Msg("build stamped")
			return nil
		},
	}
}

func productFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{Name: "id", Required: true},
		&cli.StringFlag{Name: "name"},
		&cli.StringFlag{Name: "price", Required: true, Usage: "price per unit"},
		&cli.StringFlag{Name: "unit", Value: string(model.DefaultUnit), Usage: "piece, kg, 100g or 100ml"},
		&cli.StringFlag{Name: "discount-type", Usage: "percentage or fixed"},
		&cli.StringFlag{Name: "discount-value"},
		&cli.BoolFlag{Name: "special-offer"},
		&cli.Float64Flag{Name: "quantity", Usage: "defaults to the unit's default quantity"},
	}
}

func productFromFlags(c *cli.Context) *model.Product {
	p := &model.Product{
		ID:             c.Int64("id"),
		Name:           c.String("name"),
		Price:          model.NumericString(c.String("price")),
		Unit:           model.ParseUnit(c.String("unit")),
		IsActive:       true,
		IsAvailable:    true,
		IsSpecialOffer: c.Bool("special-offer"),
		DiscountType:   model.DiscountType(c.String("discount-type")),
	}
	if c.IsSet("discount-value") {
		p.DiscountValue = model.NumericString(c.String("discount-value"))
	}
	return p
}

func printCart(store *cart.Store) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQUANTITY\tTOTAL")
	for _, line := range store.Items() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			line.Product.ID,
			line.Product.Name,
			pricing.FormatQuantity(line.Quantity, line.Product.PricingUnit(), nil),
			pricing.FormatCurrency(line.TotalPrice),
		)
	}
	fmt.Fprintf(w, "\t\titems: %s\ttotal: %s\n",
		strconv.FormatFloat(store.GetTotalItems(), 'f', -1, 64),
		pricing.FormatCurrency(store.GetTotalPrice()),
	)
	_ = w.Flush()
}

func cartCommand(cfg AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "inspect and change the persisted cart",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the cart with totals",
				Action: withRuntime(cfg, func(ctx context.Context, _ *cli.Context, rt *runtime) error {
					store, err := rt.cartStore(ctx)
					if err != nil {
						return err
					}
					printCart(store)
					return nil
				}),
			},
			{
				Name:  "add",
				Usage: "add a product",
				Flags: productFlags(),
				Action: withRuntime(cfg, func(ctx context.Context, c *cli.Context, rt *runtime) error {
					store, err := rt.cartStore(ctx)
					if err != nil {
						return err
					}
					p := productFromFlags(c)
					qty := pricing.DefaultQuantity(p.PricingUnit())
					if c.IsSet("quantity") {
						qty = pricing.NormalizeQuantity(c.Float64("quantity"), p.PricingUnit())
					}
					if err := store.AddItem(ctx, p, qty); err != nil {
						return err
					}
					printCart(store)
					return nil
				}),
			},
			{
				Name:      "remove",
				Usage:     "remove a product",
				ArgsUsage: "<product-id>",
				Action: withRuntime(cfg, func(ctx context.Context, c *cli.Context, rt *runtime) error {
					id, err := strconv.ParseInt(c.Args().First(), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid product id %q: %w", c.Args().First(), err)
					}
					store, err := rt.cartStore(ctx)
					if err != nil {
						return err
					}
					if err := store.RemoveItem(ctx, id); err != nil {
						return err
					}
					printCart(store)
					return nil
				}),
			},
			{
				Name:      "set",
				Usage:     "set the quantity of a product; zero removes it",
				ArgsUsage: "<product-id> <quantity>",
				Action: withRuntime(cfg, func(ctx context.Context, c *cli.Context, rt *runtime) error {
					id, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid product id %q: %w", c.Args().Get(0), err)
					}
					qty := model.ParseNumber(c.Args().Get(1))
					store, err := rt.cartStore(ctx)
					if err != nil {
						return err
					}
					if err := store.UpdateQuantity(ctx, id, qty); err != nil {
						return err
					}
					printCart(store)
					return nil
				}),
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: withRuntime(cfg, func(ctx context.Context, _ *cli.Context, rt *runtime) error {
					store, err := rt.cartStore(ctx)
					if err != nil {
						return err
					}
					return store.ClearCart(ctx)
				}),
			},
			{
				Name:  "toggle",
				Usage: "open or close the cart drawer",
				Action: withRuntime(cfg, func(ctx context.Context, _ *cli.Context, rt *runtime) error {
					store, err := rt.cartStore(ctx)
					if err != nil {
						return err
					}
					if err := store.ToggleCart(ctx); err != nil {
						return err
					}
					fmt.Println("open:", store.IsOpen())
					return nil
				}),
			},
			{
				Name:  "checkout",
				Usage: "place an order for the cart",
				Action: withRuntime(cfg, func(ctx context.Context, _ *cli.Context, rt *runtime) error {
					client, err := storefront.New(cfg.Shop)
					if err != nil {
						return err
					}
					store, err := rt.cartStore(ctx)
					if err != nil {
						return err
					}
					id, err := store.Checkout(ctx, rt.delivery(), client)
					if err != nil {
						return err
					}
					fmt.Println("order placed:", id)
					return nil
				}),
			},
		},
	}
}

func pushCommand(cfg AppConfig) *cli.Command {
	service := func() (*push.Service, error) {
		client, err := storefront.New(cfg.Shop)
		if err != nil {
			return nil, err
		}
		return push.NewService(client), nil
	}
	return &cli.Command{
		Name:  "push",
		Usage: "manage the web push subscription",
		Subcommands: []*cli.Command{
			{
				Name:  "vapid-key",
				Usage: "print the server's application server key",
				Action: func(c *cli.Context) error {
					svc, err := service()
					if err != nil {
						return err
					}
					key, err := svc.ApplicationServerKey(c.Context)
					if err != nil {
						return err
					}
					fmt.Println(push.EncodeKey(key))
					return nil
				},
			},
			{
				Name:  "subscribe",
				Usage: "register a push subscription",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "endpoint", Required: true},
					&cli.StringFlag{Name: "p256dh", Required: true, Usage: "base64 client public key"},
					&cli.StringFlag{Name: "auth", Required: true, Usage: "base64 auth secret"},
				},
				Action: func(c *cli.Context) error {
					p256dh, err := push.DecodeApplicationServerKey(c.String("p256dh"))
					if err != nil {
						return fmt.Errorf("p256dh: %w", err)
					}
					auth, err := push.DecodeApplicationServerKey(c.String("auth"))
					if err != nil {
						return fmt.Errorf("auth: %w", err)
					}
					svc, err := service()
					if err != nil {
						return err
					}
					sub, err := svc.Subscribe(c.Context, c.String("endpoint"), p256dh, auth)
					if err != nil {
						return err
					}
					fmt.Println("subscribed:", sub.Endpoint)
					return nil
				},
			},
			{
				Name:      "unsubscribe",
				Usage:     "remove a push subscription",
				ArgsUsage: "<endpoint>",
				Action: func(c *cli.Context) error {
					svc, err := service()
					if err != nil {
						return err
					}
					return svc.Unsubscribe(c.Context, c.Args().First())
				},
			},
		},
	}
}

func inboxCommand(cfg AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "inbox",
		Usage: "list and manage local notifications",
		Action: withRuntime(cfg, func(ctx context.Context, _ *cli.Context, rt *runtime) error {
			inbox := notify.NewInbox(rt.local, rt.publisher(), nil)
			all, err := inbox.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tREAD\tTITLE\tTIME")
			for _, n := range all {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", n.ID, n.Type, n.Read, n.Title,
					time.UnixMilli(n.Timestamp).Format(time.RFC3339))
			}
			return w.Flush()
		}),
		Subcommands: []*cli.Command{
			{
				Name:      "read",
				Usage:     "mark one notification, or all with --all, as read",
				ArgsUsage: "[id]",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "all"}},
				Action: withRuntime(cfg, func(ctx context.Context, c *cli.Context, rt *runtime) error {
					inbox := notify.NewInbox(rt.local, rt.publisher(), nil)
					if c.Bool("all") {
						return inbox.MarkAllRead(ctx)
					}
					found, err := inbox.MarkRead(ctx, c.Args().First())
					if err != nil {
						return err
					}
					if !found {
						return fmt.Errorf("no notification %q", c.Args().First())
					}
					return nil
				}),
			},
			{
				Name:  "clear",
				Usage: "delete every notification",
				Action: withRuntime(cfg, func(ctx context.Context, _ *cli.Context, rt *runtime) error {
					return notify.NewInbox(rt.local, rt.publisher(), nil).Clear(ctx)
				}),
			},
		},
	}
}

func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

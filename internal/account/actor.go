// Package account implements the AccountActor: the per-trading-address
// mailbox-owning task that holds the authoritative view of one account's
// open orders, the reserved-volume ledger, the placement pipeline and the
// websocket diff stream.
//
// Grounded on the teacher's internal/order.Usecase (a single worker
// goroutine draining a command channel, folding async results back into
// its own loop via self-sent messages) and internal/og's order lifecycle
// state machine (ApplyIntent/ApplyAck/ApplyFill, generalized here into
// handleOrderAdded/handleOrderExecuted/handleTerminated against
// activeOrders instead of a single in-flight venue order).
package account

import (
	"context"
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"github.com/BitFinance-Co/dex/internal/balance"
	"github.com/BitFinance-Co/dex/internal/bus"
	"github.com/BitFinance-Co/dex/internal/domain"
	"github.com/BitFinance-Co/dex/internal/obs"
)

// oracleAskTimeout bounds the BalanceOracle asks made for placement
// validation and GetTradableBalance: a hung NodeClient fails the waiting
// future after 5s rather than blocking the account's mailbox indefinitely.
// The websocket snapshot and diff-tick asks run without this bound.
const oracleAskTimeout = 5 * time.Second

// Config is the subset of process configuration an actor needs, sourced
// from internal/config.
type Config struct {
	MaxActiveOrders     int
	WsMessagesInterval  time.Duration
	BatchCancelTimeout  time.Duration
	ExpirationThreshold time.Duration
	MailboxCapacity     int
}

// DefaultConfig mirrors spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		MaxActiveOrders:     200,
		WsMessagesInterval:  100 * time.Millisecond,
		BatchCancelTimeout:  20 * time.Second,
		ExpirationThreshold: 50 * time.Millisecond,
		MailboxCapacity:     256,
	}
}

// pendingKind discriminates a PendingCommand's inner command.
type pendingKind uint8

const (
	pendingPlace pendingKind = iota
	pendingCancel
)

// pendingCommand is the spec's PendingCommand: the in-flight client
// command awaiting a terminal reply, plus its reply channel.
type pendingCommand struct {
	kind        pendingKind
	order       domain.Order
	isMarket    bool
	submittedAt time.Time
	placeReply  chan PlaceResult
	cancelReply chan CancelResult
}

// Actor is the per-account AccountActor.
type Actor struct {
	owner domain.Address

	oracle *balance.Oracle
	node   domain.NodeClient
	store  domain.StoreSink
	db     domain.OrderDB
	cfg    Config
	logTag string
	metrics *obs.Metrics

	mailbox *bus.Queue[Message]
	timerFired chan expiryFired
	stop       chan struct{}
	stopped    chan struct{}

	schedulingEnabled bool

	activeOrders    map[domain.OrderID]domain.AcceptedOrder
	openVolume      map[domain.Asset]int64
	placementQueue  []domain.OrderID
	pendingCommands map[domain.OrderID]*pendingCommand
	expiryTimers    map[domain.OrderID]*time.Timer

	ws wsMutableState

	validating bool
}

// New constructs an AccountActor for owner. Call Run in its own goroutine.
func New(owner domain.Address, oracle *balance.Oracle, node domain.NodeClient, store domain.StoreSink, db domain.OrderDB, cfg Config, metrics *obs.Metrics) *Actor {
	return &Actor{
		owner:           owner,
		oracle:          oracle,
		node:            node,
		store:           store,
		db:              db,
		cfg:             cfg,
		logTag:          owner.String(),
		metrics:         metrics,
		mailbox:         bus.NewQueue[Message](cfg.MailboxCapacity),
		timerFired:      make(chan expiryFired, 16),
		stop:            make(chan struct{}),
		stopped:         make(chan struct{}),
		activeOrders:    make(map[domain.OrderID]domain.AcceptedOrder),
		openVolume:      make(map[domain.Asset]int64),
		pendingCommands: make(map[domain.OrderID]*pendingCommand),
		expiryTimers:    make(map[domain.OrderID]*time.Timer),
		ws:              newWsMutableState(),
	}
}

// Send delivers msg to the actor's mailbox, blocking until there is room
// or ctx is done.
func (a *Actor) Send(ctx context.Context, msg Message) error {
	return a.mailbox.Publish(ctx, msg)
}

// TrySend delivers msg without blocking; used by the Directory's
// best-effort event fan-out, where a full mailbox means the account is
// pathologically backed up and the event is better logged than blocking
// the router.
func (a *Actor) TrySend(msg Message) error {
	err := a.mailbox.TryPublish(msg)
	if err != nil {
		a.metrics.IncMailboxDrops()
	}
	return err
}

// Owner returns the account address this actor serializes state for.
func (a *Actor) Owner() domain.Address { return a.owner }

// Config returns the Config this actor was spawned with. A running actor
// never picks up a later Directory.SetAccountConfig call — only actors
// spawned afterward do.
func (a *Actor) Config() Config { return a.cfg }

// Stop signals the actor's Run loop to exit and cancels every outstanding
// timer, per spec.md §5's resource-acquisition rule.
func (a *Actor) Stop() {
	close(a.stop)
	<-a.stopped
}

// Run is the actor's single-threaded message loop. It must run in exactly
// one goroutine for the lifetime of the actor — this is the entirety of
// the "at most one message handled at a time" contract.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.stopped)
	defer a.cancelAllTimers()

	diffTicker := time.NewTicker(a.cfg.WsMessagesInterval)
	defer diffTicker.Stop()

	mailboxC := a.mailbox.C()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case msg, ok := <-mailboxC:
			if !ok {
				return
			}
			a.dispatch(ctx, msg)
		case fired := <-a.timerFired:
			a.dispatch(ctx, fired)
		case <-diffTicker.C:
			a.dispatch(ctx, wsDiffTick{})
		}
	}
}

func (a *Actor) dispatch(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case PlaceOrder:
		a.handlePlaceOrder(ctx, m)
	case CancelOrder:
		a.handleCancelOrder(ctx, m)
	case CancelAllOrders:
		a.handleCancelAllOrders(ctx, m)
	case CancelNotEnoughCoinsOrders:
		a.handleCancelNotEnoughCoinsOrders(ctx, m)
	case GetReservedBalance:
		m.Reply <- domain.CloneBalances(a.openVolume)
	case GetTradableBalance:
		a.handleGetTradableBalance(ctx, m)
	case GetOrderStatus:
		m.Reply <- a.handleGetOrderStatus(ctx, m.ID)
	case GetOrdersStatuses:
		a.handleGetOrdersStatuses(ctx, m)
	case WsSubscribe:
		a.handleWsSubscribe(ctx, m)
	case orderAddedMsg:
		a.handleOrderAdded(ctx, m.event)
	case orderExecutedMsg:
		a.handleOrderExecuted(ctx, m.event)
	case orderCanceledMsg:
		a.handleOrderCanceled(ctx, m.event)
	case validationPassed:
		a.handleValidationPassed(ctx, m)
	case validationFailed:
		a.handleValidationFailed(ctx, m)
	case storeOutcomeMsg:
		a.handleStoreOutcome(m)
	case expiryFired:
		a.handleExpiryFired(ctx, m)
	case wsSnapshotReady:
		a.handleWsSnapshotReady(m)
	case tradableBalanceReady:
		a.handleTradableBalanceReady(m)
	case wsDiffTick:
		a.handleWsDiffTick(ctx)
	case StartSchedules:
		a.handleStartSchedules(ctx)
	default:
		logs.Errorf("account %s: unhandled message type %T", a.logTag, msg)
	}
}

// assertNonNegativeVolume enforces spec.md §4.1's fatal invariant: a
// negative openVolume entry is a logic bug, never a recoverable condition.
func (a *Actor) assertNonNegativeVolume() {
	for asset, v := range a.openVolume {
		if v < 0 {
			panic(fmt.Sprintf("account %s: openVolume[%s] went negative (%d)", a.owner, asset, v))
		}
	}
}

func (a *Actor) selfSend(ctx context.Context, msg Message) {
	if err := a.mailbox.Publish(ctx, msg); err != nil {
		logs.Errorf("account %s: dropped self-sent follow-up %T: %+v", a.logTag, msg, err)
	}
}

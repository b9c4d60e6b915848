// Package dispatch implements the command-layer entry point (spec §4.1):
// it normalizes the command name, runs the transaction validator, routes
// the command to the right store view, and maps every failure to the
// wire error envelope. The registered-handler map replaces the source's
// polymorphic per-class dispatch, per spec §9's design note.
package dispatch

import (
	"strings"
	"time"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/cursor"
	"github.com/jongodb/jongodb/pkg/log"
	"github.com/jongodb/jongodb/pkg/metrics"
	"github.com/jongodb/jongodb/pkg/store"
	"github.com/jongodb/jongodb/pkg/txn"
	"github.com/jongodb/jongodb/pkg/validate"
)

// Request bundles what a handler needs: the raw command, the resolved
// database name, the store view selected by the transaction coordinator
// (global or a transaction's snapshot), and the cursor registry. Handlers
// receive the store view as an explicit parameter rather than reading it
// from ambient state (spec §9: "avoid ambient state").
type Request struct {
	Command  *bsontype.Document
	Database string
	Store    store.TransactionalStore
	Cursors  *cursor.Registry
}

// HandlerFunc implements one command (spec §4.2: "handle(cmd) →
// response"). A nil response with a nil error is treated as an empty
// success document.
type HandlerFunc func(req *Request) (*bsontype.Document, *cmderr.CommandError)

// Dispatcher is the registered-handler map plus the transaction
// coordinator and cursor registry it wires into every request.
type Dispatcher struct {
	handlers    map[string]HandlerFunc
	coordinator *txn.Coordinator
	global      store.TransactionalStore
	cursors     *cursor.Registry
}

// New builds a Dispatcher over the given global store.
func New(global store.TransactionalStore) *Dispatcher {
	return &Dispatcher{
		handlers:    make(map[string]HandlerFunc),
		coordinator: txn.NewCoordinator(),
		global:      global,
		cursors:     cursor.New(),
	}
}

// Register binds a handler to a lowercased command name (spec §4.1).
func (d *Dispatcher) Register(name string, h HandlerFunc) {
	d.handlers[strings.ToLower(name)] = h
}

// Dispatch implements the full pipeline of spec §4.1/§7: name resolution,
// transaction routing, handler execution, and error-envelope mapping. A
// single recover() at this boundary plays the role of the source's
// catch-all exception handler (spec §7).
func (d *Dispatcher) Dispatch(cmd *bsontype.Document) (resp *bsontype.Document) {
	start := time.Now()
	name, ok := validate.CommandName(cmd)
	if !ok {
		return errorEnvelope("", start, cmderr.Errorf("command document must not be empty"))
	}

	defer func() {
		if r := recover(); r != nil {
			resp = errorEnvelope(name, start, cmderr.Errorf("internal error: %v", r))
		}
	}()

	database := validate.Database(cmd)

	decision, err := d.coordinator.Route(cmd, name, d.global)
	if err != nil {
		return errorEnvelope(name, start, err)
	}

	switch decision.Outcome {
	case txn.CommitTransaction:
		metrics.TransactionsTotal.WithLabelValues("committed").Inc()
		return okEnvelope(nil)
	case txn.AbortTransaction:
		metrics.TransactionsTotal.WithLabelValues("aborted").Inc()
		return okEnvelope(nil)
	}

	view := d.global
	if decision.Store != nil {
		view = decision.Store
	}

	handler, registered := d.handlers[name]
	if !registered {
		return errorEnvelope(name, start, cmderr.CommandNotFoundError(name))
	}

	req := &Request{Command: cmd, Database: database, Store: view, Cursors: d.cursors}
	result, handlerErr := handler(req)
	if handlerErr != nil {
		return errorEnvelope(name, start, handlerErr)
	}

	metrics.CommandsTotal.WithLabelValues(name, "ok").Inc()
	metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return okEnvelope(result)
}

func okEnvelope(body *bsontype.Document) *bsontype.Document {
	if body == nil {
		body = bsontype.NewDocument()
	}
	body.Set("ok", bsontype.Double(1))
	return body
}

func errorEnvelope(command string, start time.Time, err *cmderr.CommandError) *bsontype.Document {
	if command != "" {
		metrics.CommandsTotal.WithLabelValues(command, err.Code.String()).Inc()
		metrics.CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	}
	if err.Code == cmderr.DuplicateKey {
		metrics.DuplicateKeyErrorsTotal.Inc()
	}
	if err.Code == cmderr.WriteConflict {
		metrics.WriteConflictsTotal.Inc()
	}

	log.WithComponent("dispatch").Debug().
		Str("command", command).
		Int32("code", int32(err.Code)).
		Str("codeName", err.Code.String()).
		Msg("command failed")

	d := bsontype.NewDocument()
	d.Set("ok", bsontype.Double(0))
	d.Set("errmsg", bsontype.String(err.Errmsg))
	d.Set("code", bsontype.Int32(int32(err.Code)))
	d.Set("codeName", bsontype.String(err.Code.String()))
	if len(err.Labels) > 0 {
		labels := make([]bsontype.Value, len(err.Labels))
		for i, l := range err.Labels {
			labels[i] = bsontype.String(string(l))
		}
		d.Set("errorLabels", bsontype.Array(labels...))
	}
	return d
}

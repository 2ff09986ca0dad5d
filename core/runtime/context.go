package runtime

import (
	"context"

	"github.com/artpar/hfn/core/model"
	"github.com/artpar/hfn/core/wire"
	"github.com/artpar/hfn/ports"
	"github.com/rs/zerolog"
)

// Context is handed to a handler for one invocation. It embeds the
// dispatcher's handler context, which outlives intake and is cancelled by
// Dispatcher.Abort.
type Context struct {
	context.Context

	PackageID    uint32
	ModuleID     uint32
	HandlerID    uint32
	ConnectionID string
	Headers      map[string]string
	Cookies      map[string]string

	// Data is the decoded handler input.
	Data *model.Model

	InvocationID string

	handler string
	pkg     *Package
	d       *Dispatcher
	logger  zerolog.Logger
}

// Handler returns the dotted name of the running handler.
func (c *Context) Handler() string {
	return c.handler
}

// Logger returns a logger tagged with the invocation.
func (c *Context) Logger() *zerolog.Logger {
	return &c.logger
}

// SetState pushes a module State record to the connection. Records whose
// schema is not a module State are ignored. Delivery is fire-and-forget:
// failures are logged, not returned.
func (c *Context) SetState(state *model.Model) {
	if state == nil {
		return
	}
	moduleID, ok := state.Schema().ModuleID()
	if !ok {
		c.d.metrics.StatePushed(ports.PushSkipped)
		c.logger.Debug().Str("schema", state.Schema().Key().String()).Msg("not a module state, push skipped")
		return
	}

	if c.pkg != nil {
		if err := c.pkg.onSetState(c, state); err != nil {
			c.d.metrics.StatePushed(ports.PushSkipped)
			c.logger.Debug().Err(err).Msg("state push suppressed by middleware")
			return
		}
	}

	data, err := state.Encode()
	if err != nil {
		c.d.metrics.StatePushed(ports.PushFailed)
		c.logger.Error().Err(err).Msg("encode state")
		return
	}

	push := wire.StatePush{
		PackageID: state.Schema().PackageID,
		ModuleID:  moduleID,
		State:     data,
	}
	if err := c.send(push); err != nil {
		c.d.metrics.StatePushed(ports.PushFailed)
		c.logger.Error().Err(err).Msg("send state")
		return
	}
	c.d.metrics.StatePushed(ports.PushSent)
}

// Render is SetState under the name UI code tends to use.
func (c *Context) Render(state *model.Model) {
	c.SetState(state)
}

// SetCookie asks the engine to set a cookie on the connection. maxAge is in
// seconds; zero leaves expiry to the engine.
func (c *Context) SetCookie(name, value string, maxAge int, private bool) {
	msg := wire.SetCookie{Name: name, Value: value, MaxAge: maxAge, Private: private}
	if err := c.send(msg); err != nil {
		c.logger.Error().Err(err).Str("cookie", name).Msg("send cookie")
	}
}

// Model returns an empty record for any schema registry key, or nil when the
// key is unknown.
func (c *Context) Model(name string) *model.Model {
	s, ok := c.d.schemas.Lookup(name)
	if !ok {
		c.logger.Warn().
			Str("model", name).
			Strs("did_you_mean", c.d.schemas.Suggest(name, 3)).
			Msg("unknown model")
		return nil
	}
	return model.New(s, c.d.schemas)
}

func (c *Context) send(msg wire.Message) error {
	frame, err := wire.EncodeOutboundMessage(c.PackageID, msg)
	if err != nil {
		return err
	}
	return c.d.transport.SendMessage(c, c.ConnectionID, frame)
}

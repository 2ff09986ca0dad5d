package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/hfn/core/runtime"
)

// homeView is the example module served by "hfn serve". It greets a
// connection on mount and keeps a per-connection counter.
type homeView struct {
	mu     sync.Mutex
	counts map[string]int32
}

func newHomeView() runtime.Module {
	return &homeView{counts: make(map[string]int32)}
}

func (v *homeView) Name() string { return "homeView" }

func (v *homeView) Handlers() map[string]runtime.HandlerFunc {
	return map[string]runtime.HandlerFunc{
		"mount":     v.mount,
		"increment": v.increment,
		"reset":     v.reset,
	}
}

func (v *homeView) mount(c *runtime.Context) error {
	name, _ := c.Data.Get("name").(string)
	if name == "" {
		name = "stranger"
	}

	state := c.Model("homeView.State")
	if state == nil {
		return errors.New("homeView.State missing from topology")
	}
	state.Set("greeting", fmt.Sprintf("hello, %s", name))
	state.Set("count", v.count(c.ConnectionID, 0))

	c.SetCookie("visited", "1", 3600, false)
	c.SetState(state)
	return nil
}

func (v *homeView) increment(c *runtime.Context) error {
	by, _ := c.Data.Get("by").(int32)
	if by == 0 {
		by = 1
	}

	state := c.Model("homeView.State")
	if state == nil {
		return errors.New("homeView.State missing from topology")
	}
	state.Set("count", v.count(c.ConnectionID, by))
	c.Render(state)
	return nil
}

func (v *homeView) reset(c *runtime.Context) error {
	v.mu.Lock()
	delete(v.counts, c.ConnectionID)
	v.mu.Unlock()

	state := c.Model("homeView.State")
	if state == nil {
		return errors.New("homeView.State missing from topology")
	}
	c.SetState(state)
	return nil
}

func (v *homeView) count(conn string, by int32) int32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.counts[conn] += by
	return v.counts[conn]
}

// examplePackages builds the packages served by "hfn serve".
func examplePackages() ([]*runtime.Package, error) {
	pkg, err := runtime.NewPackage("", newHomeView)
	if err != nil {
		return nil, err
	}
	pkg.Use(runtime.Middleware{
		BeforeHfn: func(c *runtime.Context) error {
			c.Logger().Debug().Str("connection", c.ConnectionID).Msg("invoke")
			return nil
		},
	})
	return []*runtime.Package{pkg}, nil
}

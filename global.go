package wavm

import (
	"context"
	"fmt"

	"github.com/wavmgo/wavm/api"
	"github.com/wavmgo/wavm/internal/runtime"
)

// hostGlobal adapts a runtime.Global to api.Global, reading its value
// through the Module's Context (mutable globals live per-Context; see
// runtime.Global.Get).
type hostGlobal struct {
	ctx *runtime.Context
	g   *runtime.Global
}

var _ api.Global = (*hostGlobal)(nil)

func (g *hostGlobal) String() string {
	return fmt.Sprintf("Global(%s,%v)", api.ValueTypeName(g.Type()), g.Get(context.Background()))
}

func (g *hostGlobal) Type() api.ValueType { return api.ValueType(g.g.Type().Value) }

func (g *hostGlobal) Get(context.Context) uint64 { return g.g.Get(g.ctx) }

// hostMutableGlobal additionally satisfies api.MutableGlobal, returned by
// Module.ExportedGlobal only when the underlying global was declared
// mutable (see module.go).
type hostMutableGlobal struct {
	*hostGlobal
}

var _ api.MutableGlobal = (*hostMutableGlobal)(nil)

func (g *hostMutableGlobal) Set(ctx context.Context, v uint64) { g.g.Set(g.ctx, v) }

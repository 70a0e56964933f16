package shim

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/tabcell/tabcell/internal/intercept"
	"github.com/tabcell/tabcell/pkg/cellib"
	"github.com/tabcell/tabcell/pkg/logger"
)

// Runtime hosts the shim prelude in a goja VM with the session bridge
// functions installed. One runtime serves one page context.
type Runtime struct {
	vm     *goja.Runtime
	log    logger.Logger
	binder *cellib.Binder
	icept  *intercept.Interceptor
	kv     *KVStore
}

// NewRuntime builds a VM with console support and the _cell_* bridge.
func NewRuntime(l logger.Logger, binder *cellib.Binder, icept *intercept.Interceptor, kv *KVStore) (*Runtime, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	vm := goja.New()
	registry := new(require.Registry)
	registry.Enable(vm)
	console.Enable(vm)

	r := &Runtime{vm: vm, log: l, binder: binder, icept: icept, kv: kv}
	bridge := map[string]any{
		"_cell_is_bound": func(tab int64) bool {
			_, ok := binder.Lookup(tab)
			return ok
		},
		"_cell_get_cookies": func(tab int64, pageURL string) string {
			v, _ := icept.ReadScriptCookies(tab, pageURL)
			return v
		},
		"_cell_set_cookie": func(tab int64, pageURL, directive string) {
			if err := icept.ApplyScriptCookie(tab, pageURL, directive); err != nil {
				l.Warning("shim: cookie write dropped for tab %d: %v", tab, err)
			}
		},
		"_cell_storage_get": func(tab int64, key string) goja.Value {
			id, ok := binder.Lookup(tab)
			if !ok {
				return goja.Undefined()
			}
			v, ok := kv.Get(id, key)
			if !ok {
				return goja.Undefined()
			}
			return vm.ToValue(v)
		},
		"_cell_storage_set": func(tab int64, key, value string) {
			if id, ok := binder.Lookup(tab); ok {
				kv.Set(id, key, value)
			}
		},
		"_cell_storage_remove": func(tab int64, key string) {
			if id, ok := binder.Lookup(tab); ok {
				kv.Remove(id, key)
			}
		},
		"_cell_storage_clear": func(tab int64) {
			if id, ok := binder.Lookup(tab); ok {
				kv.Clear(id)
			}
		},
		"_cell_storage_keys": func(tab int64) []string {
			id, ok := binder.Lookup(tab)
			if !ok {
				return nil
			}
			return kv.Keys(id)
		},
	}
	for name, fn := range bridge {
		if err := vm.Set(name, fn); err != nil {
			return nil, fmt.Errorf("shim: set %s: %w", name, err)
		}
	}
	return r, nil
}

// Install evaluates the prelude for the given page, rebinding the cookie
// and storage accessors before any page script runs.
func (r *Runtime) Install(tab int64, pageURL string) error {
	_, err := r.vm.RunString(Prelude(tab, pageURL))
	return err
}

// Eval runs a page script in the shimmed context.
func (r *Runtime) Eval(src string) (goja.Value, error) {
	return r.vm.RunString(src)
}

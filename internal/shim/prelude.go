package shim

import "fmt"

// preludeJS is the page-context override installed before any page script
// runs. It rebinds document.cookie and the localStorage surface to the
// session bridge. When the bridge reports the tab as unbound the shim
// leaves the native accessors alone: isolation degrades to passthrough
// instead of breaking the page.
const preludeJS = `(function () {
    'use strict';
    var g = typeof globalThis !== 'undefined' ? globalThis : this;
    if (!g.document) { g.document = {}; }
    if (!g.window) { g.window = g; }
    var document = g.document;
    var window = g.window;
    var TAB = __cellTabId;
    var PAGE = __cellPageUrl;
    if (!_cell_is_bound(TAB)) {
        return;
    }

    Object.defineProperty(document, 'cookie', {
        configurable: true,
        get: function () {
            return _cell_get_cookies(TAB, PAGE);
        },
        set: function (directive) {
            _cell_set_cookie(TAB, PAGE, String(directive));
        }
    });

    var store = {
        getItem: function (k) {
            var v = _cell_storage_get(TAB, String(k));
            return v === undefined ? null : v;
        },
        setItem: function (k, v) {
            _cell_storage_set(TAB, String(k), String(v));
        },
        removeItem: function (k) {
            _cell_storage_remove(TAB, String(k));
        },
        clear: function () {
            _cell_storage_clear(TAB);
        },
        key: function (n) {
            var keys = _cell_storage_keys(TAB);
            return n >= 0 && n < keys.length ? keys[n] : null;
        }
    };
    Object.defineProperty(store, 'length', {
        get: function () {
            return _cell_storage_keys(TAB).length;
        }
    });
    Object.defineProperty(window, 'localStorage', {
        configurable: true,
        get: function () { return store; }
    });
})();`

// Prelude returns the JS source to inject for a page, parameterized with
// the tab id and page URL.
func Prelude(tab int64, pageURL string) string {
	return fmt.Sprintf("var __cellTabId = %d;\nvar __cellPageUrl = %q;\n%s", tab, pageURL, preludeJS)
}

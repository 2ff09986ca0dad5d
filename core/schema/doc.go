/*
Package schema holds the typed shape of every record that crosses the wire.

A schema is identified by (package id, schema id) and owns a set of fields.
Each field is either scalar, typed by a one character code, or a reference to
another schema by lookup key:

	s  string
	i  int32
	f  float64
	b  bool
	t  byte blob

Any longer type tag is a schema reference and is resolved through the
Registry, e.g. "homeView.ahaha" or "0-3".

# Registry

The registry is built once from the engine's topology and is read-only
afterwards, so it is safe for concurrent use without locking. A schema is
reachable through four independent indexes:

	homeView.State        dotted name of a module State model
	ui.homeView.mount     dotted name of a handler input
	model-0-1-1           (package, module, model)
	hfn-0-1-2             (package, module, handler)
	0-4                   (package, schema)

Every key of a schema resolves to the same *Schema.
*/
package schema

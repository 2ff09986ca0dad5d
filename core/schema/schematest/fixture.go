// Package schematest provides a shared topology fixture for tests.
package schematest

import (
	"github.com/artpar/hfn/core/schema"
	"github.com/artpar/hfn/core/topology"
	"github.com/rs/zerolog"
)

// Identities used by the fixture.
const (
	MainPackage uint32 = 0
	UIPackage   uint32 = 1

	HomeModule uint32 = 1
	CardModule uint32 = 1

	MountHandler uint32 = 1
	HideHandler  uint32 = 2
	FlipHandler  uint32 = 1

	StateSchema     uint32 = 1
	NestedSchema    uint32 = 2
	MountSchema     uint32 = 3
	OrphanSchema    uint32 = 4
	LookalikeSchema uint32 = 5
	HideSchema      uint32 = 6
)

// Topology returns the fixture: a main package with a homeView module and a
// "ui" package with a card module.
//
// homeView.State carries one field of every scalar type and array form plus
// nested references to homeView.ahaha. homeView.lookalike has the same shape
// as homeView.ahaha but a different identity.
func Topology() topology.Topology {
	return topology.Topology{
		UpstreamID: "fixture",
		Packages: []topology.Package{
			{ID: MainPackage, Name: ""},
			{ID: UIPackage, Name: "ui"},
		},
		Modules: []topology.Module{
			{ID: HomeModule, Name: "homeView", PackageID: MainPackage},
			{ID: CardModule, Name: "card", PackageID: UIPackage},
		},
		Models: []topology.Model{
			{ID: 1, Name: "", SchemaID: StateSchema, PackageID: MainPackage, ModuleID: HomeModule},
			{ID: 2, Name: "ahaha", SchemaID: NestedSchema, PackageID: MainPackage, ModuleID: HomeModule},
			{ID: 3, Name: "lookalike", SchemaID: LookalikeSchema, PackageID: MainPackage, ModuleID: HomeModule},
			{ID: 1, Name: "", SchemaID: 1, PackageID: UIPackage, ModuleID: CardModule},
		},
		Hfns: []topology.Hfn{
			{ID: MountHandler, Name: "mount", SchemaID: MountSchema, PackageID: MainPackage, ModuleID: HomeModule},
			{ID: HideHandler, Name: "hide", SchemaID: HideSchema, PackageID: MainPackage, ModuleID: HomeModule},
			{ID: FlipHandler, Name: "flip", SchemaID: 2, PackageID: UIPackage, ModuleID: CardModule},
		},
		Schemas: []topology.Schema{
			{ID: StateSchema, PackageID: MainPackage},
			{ID: NestedSchema, PackageID: MainPackage},
			{ID: MountSchema, PackageID: MainPackage},
			{ID: OrphanSchema, PackageID: MainPackage},
			{ID: LookalikeSchema, PackageID: MainPackage},
			{ID: HideSchema, PackageID: MainPackage},
			{ID: 1, PackageID: UIPackage},
			{ID: 2, PackageID: UIPackage},
		},
		Fields: []topology.Field{
			field(MainPackage, StateSchema, 1, "str", "s", false),
			field(MainPackage, StateSchema, 2, "strArr", "s", true),
			field(MainPackage, StateSchema, 3, "int", "i", false),
			field(MainPackage, StateSchema, 4, "intArr", "i", true),
			field(MainPackage, StateSchema, 5, "float", "f", false),
			field(MainPackage, StateSchema, 6, "floatArr", "f", true),
			field(MainPackage, StateSchema, 7, "bool", "b", false),
			field(MainPackage, StateSchema, 8, "boolArr", "b", true),
			field(MainPackage, StateSchema, 9, "bytes", "t", false),
			field(MainPackage, StateSchema, 10, "bytesArr", "t", true),
			field(MainPackage, StateSchema, 11, "nested", "homeView.ahaha", false),
			field(MainPackage, StateSchema, 12, "nestedArr", "homeView.ahaha", true),
			field(MainPackage, StateSchema, 13, "mystery", "x", false),

			field(MainPackage, NestedSchema, 1, "id", "i", false),
			field(MainPackage, NestedSchema, 2, "s", "s", false),

			field(MainPackage, MountSchema, 1, "str", "s", false),
			field(MainPackage, MountSchema, 2, "n", "i", false),
			field(MainPackage, MountSchema, 3, "child", "0-2", false),

			field(MainPackage, OrphanSchema, 1, "x", "s", false),

			field(MainPackage, LookalikeSchema, 1, "id", "i", false),
			field(MainPackage, LookalikeSchema, 2, "s", "s", false),

			field(UIPackage, 1, 1, "title", "s", false),
		},
	}
}

// Registry builds the fixture registry.
func Registry() *schema.Registry {
	return schema.Build(Topology(), zerolog.Nop())
}

func field(pkg, schemaID, id uint32, name, typ string, isArray bool) topology.Field {
	return topology.Field{
		ID:        id,
		Name:      name,
		Type:      typ,
		IsArray:   isArray,
		PackageID: pkg,
		SchemaID:  schemaID,
	}
}

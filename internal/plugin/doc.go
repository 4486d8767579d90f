// Package plugin loads script modules and reloads them in place.
//
// A Module is loaded with an Env that binds everything it registers to its
// id: event subscriptions through the Env's Registrar, session commands,
// setup hooks and before-reload hooks. Because ownership is fixed when the
// Env is built, a reload can retract the module completely without the
// module's cooperation:
//
//	mgr := plugin.NewManager(bus,
//	    plugin.WithHost(h),
//	    plugin.WithCommands(commands),
//	)
//	_ = mgr.Add(ctx, plugin.NewLuaModule(manifest, 5*time.Second))
//
//	// later, between dispatch cycles
//	if err := mgr.Reload(ctx, "autoloot"); err != nil {
//	    log.Printf("reload failed: %v", err)
//	}
//
// Reload is PrepareReload followed by CompleteReload. PrepareReload retracts
// the module from the bus and then from every other Retractor, runs its
// before-reload hooks and closes it. CompleteReload loads it again; on
// success every live session receives a ResumeSession event scoped to the
// module, on failure the module is left in StateError with nothing
// registered.
//
// # Module layout
//
// Modules are discovered in the configured script directories:
//
//	scripts/
//	├── prompt.lua          # single-file module "prompt"
//	└── autoloot/
//	    ├── module.yaml     # optional manifest
//	    ├── init.lua        # entry point
//	    └── lib/
//	        └── items.lua   # require("lib.items")
//
// module.yaml:
//
//	name: autoloot
//	version: 1.2.0
//	description: Loot corpses after combat
//	main: init.lua
//	timeout: 2s
//	capabilities: [os]
//
// # Module lifecycle
//
//	StateUnloaded -> Load() -> StateLoaded
//	StateLoaded -> PrepareReload() -> StateUnloaded
//	StateUnloaded -> CompleteReload() -> StateLoaded | StateError
package plugin

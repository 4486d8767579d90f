// Package api builds the mud table that script modules use to reach the
// runtime.
//
// The table is assembled from Modules, each contributing a group of
// functions:
//
//   - event: on, on_connected, on_disconnected, on_session, on_mud,
//     on_gmcp, on_custom, off, emit
//   - session: send, output, session_info, sessions, input
//   - lifecycle: on_setup, before_reload, module, log
//   - command: command
//
// A Context is built per module load and carries the module's Registrar, so
// every registration a script makes is attributed to it without the script
// naming itself. There is no way to retract registrations from Lua.
//
// Example:
//
//	local mud = require("mud")
//
//	mud.on_gmcp("Char.Vitals", function(ev)
//	    if ev.data.hp < 100 then
//	        mud.output(ev.session, "low hp!")
//	    end
//	end)
//
//	mud.on_setup(function(info)
//	    mud.command(info.id, "hp", function(session, args)
//	        return "tracking hp"
//	    end)
//	end)
package api

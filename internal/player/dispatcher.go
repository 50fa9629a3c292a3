package player

import "fmt"

// Dispatcher routes the RPC surface (spec.md §6) to a Player by command
// name. It mirrors the teacher's rpc.Dispatcher: a thin table keyed by
// command name rather than one exported method per RPC, so a transport
// binding (gRPC, an HTTP mux, a message-bus request handler — all external
// to this module) has a single entry point to wire up.
type Dispatcher struct {
	player *Player
}

// NewDispatcher creates a Dispatcher for player.
func NewDispatcher(player *Player) *Dispatcher {
	return &Dispatcher{player: player}
}

// Request is the payload for RPCs that take arguments (set_rate, seek);
// unused fields are ignored for RPCs that don't need them.
type Request struct {
	Rate     float64
	SeekTime int64
}

// Response carries the RPC's trivial result payload.
type Response struct {
	Bool    bool
	Float64 float64
}

// Dispatch invokes the named RPC. Unknown names return an error rather than
// silently ignoring, unlike the teacher's unknown-AMF-command path, because
// there is no "unsupported is fine" fallback for an explicit control RPC.
func (d *Dispatcher) Dispatch(name string, req Request) (Response, error) {
	switch name {
	case "pause":
		d.player.Pause()
		return Response{}, nil
	case "resume":
		d.player.Resume()
		return Response{}, nil
	case "toggle_paused":
		return Response{Bool: d.player.TogglePaused()}, nil
	case "is_paused":
		return Response{Bool: d.player.IsPaused()}, nil
	case "get_rate":
		return Response{Float64: d.player.GetRate()}, nil
	case "set_rate":
		return Response{Bool: d.player.SetRate(req.Rate)}, nil
	case "play_next":
		return Response{Bool: d.player.PlayNext()}, nil
	case "seek":
		if err := d.player.Seek(req.SeekTime); err != nil {
			return Response{}, err
		}
		return Response{Bool: true}, nil
	default:
		return Response{}, fmt.Errorf("player: no handler registered for command %q", name)
	}
}

package reconcile

// Action is what resolution does for one record identifier.
type Action string

const (
	ActionNone         Action = "none"
	ActionUpdateRemote Action = "update_remote"
	ActionUpdateLocal  Action = "update_local"
	ActionCreateRemote Action = "create_remote"
	ActionCreateLocal  Action = "create_local"
	ActionDeleteLocal  Action = "delete_local"
	ActionDeleteRemote Action = "delete_remote"
)

// Decide maps the state of id in d to exactly one action:
//
//	local  remote  known remote  known local  action
//	yes    yes     -             -            newer side wins, equal is none
//	yes    no      no            -            create remote
//	yes    no      yes           -            delete local
//	no     yes     -             no           create local
//	no     yes     -             yes          delete remote
//	no     no      -             -            none
func Decide(id string, d *Data) Action {
	local, inLocal := d.Local[id]
	remote, inRemote := d.Remote[id]

	switch {
	case inLocal && inRemote:
		lt, rt := local.EffectiveTime(), remote.EffectiveTime()
		switch {
		case lt.After(rt):
			return ActionUpdateRemote
		case rt.After(lt):
			return ActionUpdateLocal
		default:
			return ActionNone
		}
	case inLocal:
		if _, known := d.KnownRemote[id]; known {
			return ActionDeleteLocal
		}
		return ActionCreateRemote
	case inRemote:
		if _, known := d.KnownLocal[id]; known {
			return ActionDeleteRemote
		}
		return ActionCreateLocal
	default:
		return ActionNone
	}
}

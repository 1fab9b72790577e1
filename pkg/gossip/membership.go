package gossip

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/hashicorp/memberlist"
)

// Role constants advertised in member metadata.
const (
	RoleSearchNode  = "search_node"
	RoleCoordinator = "coordinator"
)

// NodeDirectory receives membership changes. The coordinator's node registry
// implements it.
type NodeDirectory interface {
	Add(id string, locator string, weight float64) error
	Remove(id string) error
}

// Adapter wires memberlist events into a NodeDirectory: search nodes that
// join the gossip mesh are registered for queries, leavers are removed.
// Search nodes run the adapter with a nil directory and advertise their
// search endpoint; coordinators run it with a directory and advertise none.
type Adapter struct {
	list *memberlist.Memberlist
	conf *memberlist.Config
	dir  NodeDirectory

	nodeID     string
	role       string
	searchPort int
	weight     float64
}

// Ensure Adapter implements the memberlist hooks it registers for.
var (
	_ memberlist.Delegate      = (*Adapter)(nil)
	_ memberlist.EventDelegate = (*Adapter)(nil)
)

// New creates and starts a memberlist instance. searchPort and weight are
// only meaningful for RoleSearchNode members.
func New(nodeID string, role string, bindAddr string, bindPort int, searchPort int, weight float64, dir NodeDirectory) (*Adapter, error) {
	conf := memberlist.DefaultLANConfig()
	conf.Name = nodeID
	conf.BindAddr = bindAddr
	conf.BindPort = bindPort
	conf.AdvertisePort = bindPort
	conf.LogOutput = io.Discard

	a := &Adapter{
		conf:       conf,
		dir:        dir,
		nodeID:     nodeID,
		role:       role,
		searchPort: searchPort,
		weight:     weight,
	}
	conf.Events = a
	conf.Delegate = a

	list, err := memberlist.Create(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	a.list = list
	return a, nil
}

// Join joins the gossip mesh through seed addresses.
func (a *Adapter) Join(seeds []string) error {
	if len(seeds) > 0 {
		if _, err := a.list.Join(seeds); err != nil {
			return fmt.Errorf("failed to join cluster: %w", err)
		}
	}
	return nil
}

// Leave gracefully leaves the mesh and shuts the member down.
func (a *Adapter) Leave() error {
	if err := a.list.Leave(5 * time.Second); err != nil {
		return err
	}
	return a.list.Shutdown()
}

type memberMeta struct {
	Role       string  `json:"role"`
	SearchPort int     `json:"search_port"`
	Weight     float64 `json:"weight"`
}

// NodeMeta advertises this member's role and search endpoint.
func (a *Adapter) NodeMeta(limit int) []byte {
	data, err := json.Marshal(memberMeta{
		Role:       a.role,
		SearchPort: a.searchPort,
		Weight:     a.weight,
	})
	if err != nil {
		logger.Warnw("failed to marshal gossip node meta", "error", err.Error())
		return nil
	}
	return data
}

// NotifyMsg, GetBroadcasts, LocalState, MergeRemoteState are not used here
// but required by Delegate.
func (a *Adapter) NotifyMsg([]byte)                           {}
func (a *Adapter) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (a *Adapter) LocalState(join bool) []byte                { return nil }
func (a *Adapter) MergeRemoteState(buf []byte, join bool)     {}

// NotifyJoin registers joining search nodes with the directory.
func (a *Adapter) NotifyJoin(node *memberlist.Node) {
	if a.dir == nil || node.Name == a.nodeID {
		return
	}

	meta, ok := decodeMeta(node.Meta)
	if !ok || meta.Role != RoleSearchNode || meta.SearchPort <= 0 {
		return
	}

	locator := net.JoinHostPort(node.Addr.String(), strconv.Itoa(meta.SearchPort))
	if err := a.dir.Add(node.Name, locator, meta.Weight); err != nil {
		// Already registered: rejoin after a transient partition.
		logger.Debugw("Gossip join ignored", "id", node.Name, "error", err.Error())
		return
	}
	logger.Infow("Search node discovered via gossip", "id", node.Name, "locator", locator, "weight", meta.Weight)
}

// NotifyLeave removes departed search nodes from the directory.
func (a *Adapter) NotifyLeave(node *memberlist.Node) {
	if a.dir == nil || node.Name == a.nodeID {
		return
	}
	if err := a.dir.Remove(node.Name); err != nil {
		logger.Debugw("Gossip leave ignored", "id", node.Name, "error", err.Error())
		return
	}
	logger.Infow("Search node left gossip mesh", "id", node.Name)
}

// NotifyUpdate re-registers a member whose metadata changed.
func (a *Adapter) NotifyUpdate(node *memberlist.Node) {
	if a.dir == nil || node.Name == a.nodeID {
		return
	}
	_ = a.dir.Remove(node.Name)
	a.NotifyJoin(node)
}

func decodeMeta(meta []byte) (memberMeta, bool) {
	if len(meta) == 0 {
		return memberMeta{}, false
	}
	var m memberMeta
	if err := json.Unmarshal(meta, &m); err != nil {
		logger.Warnw("failed to decode gossip node metadata", "error", err.Error())
		return memberMeta{}, false
	}
	return m, true
}

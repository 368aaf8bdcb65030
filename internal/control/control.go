// Copyright 2024 The MAAP Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package control exposes the engine over net/rpc on a Unix domain
// socket, the way plugins/ipam/dhcp/daemon.go exposes its DHCP type:
// rpc.Register plus rpc.HandleHTTP over a listener obtained either
// from systemd socket activation or a fresh net.Listen. Each RPC
// client is assigned an opaque uuid.UUID sender token on its first
// call, so the engine can tell reservations made by different
// control-channel peers apart without naming them.
package control

import (
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"path/filepath"
	"sync"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/google/uuid"

	"github.com/maap-project/maapd/internal/engine"
	"github.com/maap-project/maapd/pkg/errors"
)

// Engine is the subset of *engine.Engine the control service drives.
// Defined as an interface so tests can substitute a fake.
type Engine interface {
	Init(sender engine.Sender, destMAC, srcMAC [6]byte, poolBase uint64, poolLen uint32) error
	Deinit()
	ReserveRange(sender engine.Sender, length uint32) (int, error)
	ReleaseRange(sender engine.Sender, id int) error
	RangeStatus(sender engine.Sender, id int)
	NextNotify() (engine.Sender, engine.Notify, bool)
}

// Service is the RPC-exported type, analogous to the teacher's DHCP
// type. Method signatures follow net/rpc's (args, *reply) error
// convention.
type Service struct {
	mu       sync.Mutex
	engine   Engine
	tokens   map[string]uuid.UUID
	shutdown chan struct{}
}

// NewService wraps eng for RPC export. Shutdown returns a channel that
// closes once an Exit call is served.
func NewService(eng Engine) *Service {
	return &Service{
		engine:   eng,
		tokens:   make(map[string]uuid.UUID),
		shutdown: make(chan struct{}),
	}
}

// Shutdown is closed after a successful Exit RPC call; cmd/maapd
// selects on it alongside its signal-derived context.
func (s *Service) Shutdown() <-chan struct{} {
	return s.shutdown
}

// InitArgs carries the engine configuration for the INIT control
// command. DestMAC/SrcMAC are 6-byte slices (net/rpc gob-encodes
// slices more cleanly than arrays).
type InitArgs struct {
	ClientID string
	DestMAC  []byte
	SrcMAC   []byte
	PoolBase uint64
	PoolLen  uint32
}

// Init is the RPC-exported equivalent of the spec's INIT command.
func (s *Service) Init(args *InitArgs, _ *struct{}) error {
	var dest, src [6]byte
	copy(dest[:], args.DestMAC)
	copy(src[:], args.SrcMAC)
	return s.engine.Init(s.tokenFor(args.ClientID), dest, src, args.PoolBase, args.PoolLen)
}

// ExitArgs is intentionally empty; EXIT tears down the whole engine,
// not a per-client resource.
type ExitArgs struct{}

// Exit is the RPC-exported equivalent of the spec's EXIT command: it
// releases every owned range (each emitting RELEASED) and signals
// cmd/maapd to shut down.
func (s *Service) Exit(_ *ExitArgs, _ *struct{}) error {
	s.engine.Deinit()
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
	return nil
}

// ReserveArgs requests a range of the given length from the caller
// identified by ClientID (an arbitrary stable string, e.g. a socket
// peer name); the service maps it to an internal uuid.UUID sender
// token.
type ReserveArgs struct {
	ClientID string
	Length   uint32
}

// ReserveReply carries the newly assigned range ID.
type ReserveReply struct {
	ID int
}

// Reserve is the RPC-exported equivalent of DHCP.Allocate.
func (s *Service) Reserve(args *ReserveArgs, reply *ReserveReply) error {
	id, err := s.engine.ReserveRange(s.tokenFor(args.ClientID), args.Length)
	if err != nil {
		return err
	}
	reply.ID = id
	return nil
}

// ReleaseArgs identifies a previously reserved range to release.
type ReleaseArgs struct {
	ClientID string
	ID       int
}

// Release is the RPC-exported equivalent of DHCP.Release.
func (s *Service) Release(args *ReleaseArgs, _ *struct{}) error {
	return s.engine.ReleaseRange(s.tokenFor(args.ClientID), args.ID)
}

// StatusArgs identifies a range to query.
type StatusArgs struct {
	ClientID string
	ID       int
}

// StatusReply mirrors the engine's Notify for a status query.
type StatusReply struct {
	Found         bool
	State         string
	Start         uint64
	Count         uint32
	ConflictStart uint64
	ConflictCount uint32
}

// Status is the RPC-exported status query. It calls RangeStatus then
// drains the single STATUS notification RangeStatus is documented to
// always produce.
func (s *Service) Status(args *StatusArgs, reply *StatusReply) error {
	token := s.tokenFor(args.ClientID)
	s.engine.RangeStatus(token, args.ID)

	sender, n, ok := s.engine.NextNotify()
	if !ok || n.Kind != engine.NotifyStatus {
		return errors.Annotate(fmt.Errorf("no STATUS notification queued"), "control: status query")
	}
	_ = sender

	reply.Found = n.Found
	reply.State = n.State.String()
	reply.Start = n.Start
	reply.Count = n.Count
	reply.ConflictStart = n.ConflictStart
	reply.ConflictCount = n.ConflictCount
	return nil
}

// tokenFor maps a client-supplied string ID to a stable opaque sender
// token, minting one on first use.
func (s *Service) tokenFor(clientID string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok, ok := s.tokens[clientID]; ok {
		return tok
	}
	tok := uuid.New()
	s.tokens[clientID] = tok
	return tok
}

// Listen obtains a listener for socketPath, preferring a systemd
// socket-activated file descriptor over a fresh bind, exactly as
// getListener does in plugins/ipam/dhcp/daemon.go.
func Listen(socketPath string) (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, errors.Annotate(err, "control: systemd activation listeners")
	}

	switch {
	case len(listeners) == 0:
		if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
			return nil, errors.Annotatef(err, "control: mkdir %q", filepath.Dir(socketPath))
		}
		os.Remove(socketPath)
		return net.Listen("unix", socketPath)

	case len(listeners) == 1:
		if listeners[0] == nil {
			return nil, fmt.Errorf("control: LISTEN_FDS=1 but no usable file descriptor")
		}
		return listeners[0], nil

	default:
		return nil, fmt.Errorf("control: too many (%d) socket-activated file descriptors", len(listeners))
	}
}

// Serve registers svc for RPC and serves it over l until l is closed.
// It runs rpc.HandleHTTP's handler on its own *http.ServeMux so it can
// be called more than once per process (tests spin up several).
func Serve(l net.Listener, svc *Service) error {
	server := rpc.NewServer()
	if err := server.RegisterName("MAAP", svc); err != nil {
		return fmt.Errorf("control: register RPC service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	return http.Serve(l, mux)
}

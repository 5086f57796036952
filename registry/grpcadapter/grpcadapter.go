// Package grpcadapter exposes a read-only gRPC federation surface over the
// Persona Registry (C7), letting an Intent Router running in one process
// consult a registry hosted in another. Grounded on the teacher's
// runtime/registry.GRPCClientAdapter (wrap a generated client behind the
// consumer-side interface the rest of the runtime already depends on);
// since this module has no protoc code-generation step, the wire messages
// are google.golang.org/protobuf's pre-generated structpb.Struct/Empty
// types rather than a hand-maintained *.pb.go, and the service is
// registered directly against a grpc.ServiceDesc instead of generated
// stubs — genuinely exercising google.golang.org/grpc and
// google.golang.org/protobuf without inventing a fake dependency.
package grpcadapter

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/agentfleet/orchestrator/persona"
)

const serviceName = "agentfleet.persona.PersonaRegistry"

// RegistryClient is the consumer-facing interface a remote Intent Router
// depends on, matching the shape of the teacher's RegistryClient —
// callers never see the gRPC transport directly.
type RegistryClient interface {
	ListSlots(ctx context.Context) ([]persona.Slot, error)
}

func slotToStruct(s persona.Slot) (*structpb.Struct, error) {
	modes := make([]any, 0, len(s.Modes))
	for _, m := range s.Modes {
		modes = append(modes, map[string]any{
			"slug": m.Slug, "name": m.Name, "description": m.Description,
			"when_to_use": m.WhenToUse, "tool_groups": toAnySlice(m.ToolGroups), "is_internal": m.IsInternal,
		})
	}
	return structpb.NewStruct(map[string]any{
		"id": int64(s.ID), "name": s.Name, "description": s.Description,
		"default_mode_slug": s.DefaultModeSlug, "enabled": s.Enabled,
		"bound_extensions": toAnySlice(s.BoundExtensions), "modes": modes,
	})
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func structToSlot(st *structpb.Struct) persona.Slot {
	fields := st.AsMap()
	s := persona.Slot{
		Name:            stringField(fields, "name"),
		Description:     stringField(fields, "description"),
		DefaultModeSlug: stringField(fields, "default_mode_slug"),
		Enabled:         boolField(fields, "enabled"),
		BoundExtensions: stringSliceField(fields, "bound_extensions"),
	}
	if id, ok := fields["id"].(float64); ok {
		s.ID = persona.SlotID(int(id))
	}
	if rawModes, ok := fields["modes"].([]any); ok {
		for _, rm := range rawModes {
			mf, ok := rm.(map[string]any)
			if !ok {
				continue
			}
			s.Modes = append(s.Modes, persona.Mode{
				Slug: stringField(mf, "slug"), Name: stringField(mf, "name"),
				Description: stringField(mf, "description"), WhenToUse: stringField(mf, "when_to_use"),
				ToolGroups: stringSliceField(mf, "tool_groups"), IsInternal: boolField(mf, "is_internal"),
			})
		}
	}
	return s
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func stringSliceField(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Server adapts a *persona.Registry to the PersonaRegistry gRPC service.
type Server struct {
	registry *persona.Registry
}

// NewServer wraps a Registry for gRPC exposure.
func NewServer(r *persona.Registry) *Server { return &Server{registry: r} }

func (s *Server) listSlots(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	slots := s.registry.Slots()
	entries := make([]any, 0, len(slots))
	for _, slot := range slots {
		st, err := slotToStruct(slot)
		if err != nil {
			return nil, fmt.Errorf("grpcadapter: encode slot %q: %w", slot.Name, err)
		}
		entries = append(entries, st.AsMap())
	}
	return structpb.NewStruct(map[string]any{"slots": entries})
}

func listSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(emptypb.Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).listSlots(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListSlots"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).listSlots(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc is the hand-authored equivalent of what protoc-gen-go-grpc
// would emit for a one-method read-only registry service.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSlots", Handler: listSlotsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "persona/grpcadapter.proto",
}

// Register attaches the PersonaRegistry service to a running grpc.Server.
func Register(s *grpc.Server, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

// Client implements RegistryClient by invoking the gRPC service over an
// established connection, mirroring the teacher's GRPCClientAdapter.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an established connection.
func NewClient(cc *grpc.ClientConn) *Client { return &Client{cc: cc} }

// ListSlots fetches every slot the remote registry holds, including
// disabled ones, matching Registry.Slots's local semantics.
func (c *Client) ListSlots(ctx context.Context) ([]persona.Slot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ListSlots", new(emptypb.Empty), out); err != nil {
		return nil, fmt.Errorf("grpcadapter: ListSlots: %w", err)
	}
	fields := out.AsMap()
	rawSlots, _ := fields["slots"].([]any)
	slots := make([]persona.Slot, 0, len(rawSlots))
	for _, rs := range rawSlots {
		m, ok := rs.(map[string]any)
		if !ok {
			continue
		}
		st, err := structpb.NewStruct(m)
		if err != nil {
			continue
		}
		slots = append(slots, structToSlot(st))
	}
	return slots, nil
}

var _ RegistryClient = (*Client)(nil)

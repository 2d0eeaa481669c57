// Code generated manually for bootstrap. Replace with protoc-generated code for production.
package replicpb

import (
	context "context"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

// Compile-time assertions.
var _ context.Context
var _ grpc.ClientConnInterface

const _ = grpc.SupportPackageIsVersion7

// WatermarkOffer is a subscriber's last-known seq_num for one
// (tenant, tablespace), sent on connect to resume catch-up replay
//.
type WatermarkOffer struct {
	PeerId     string `protobuf:"bytes,1,opt,name=peer_id,json=peerId,proto3" json:"peer_id,omitempty"`
	TenantId   string `protobuf:"bytes,2,opt,name=tenant_id,json=tenantId,proto3" json:"tenant_id,omitempty"`
	Tablespace string `protobuf:"bytes,3,opt,name=tablespace,proto3" json:"tablespace,omitempty"`
	SeqNum     uint64 `protobuf:"varint,4,opt,name=seq_num,json=seqNum,proto3" json:"seq_num,omitempty"`
}

// WALEntry is one write-ahead log record on the wire.
type WALEntry struct {
	SeqNum       uint64 `protobuf:"varint,1,opt,name=seq_num,json=seqNum,proto3" json:"seq_num,omitempty"`
	TenantId     string `protobuf:"bytes,2,opt,name=tenant_id,json=tenantId,proto3" json:"tenant_id,omitempty"`
	Tablespace   string `protobuf:"bytes,3,opt,name=tablespace,proto3" json:"tablespace,omitempty"`
	Operation    string `protobuf:"bytes,4,opt,name=operation,proto3" json:"operation,omitempty"`
	Key          string `protobuf:"bytes,5,opt,name=key,proto3" json:"key,omitempty"`
	Value        []byte `protobuf:"bytes,6,opt,name=value,proto3" json:"value,omitempty"`
	TimestampUs  int64  `protobuf:"varint,7,opt,name=timestamp_us,json=timestampUs,proto3" json:"timestamp_us,omitempty"`
	SourcePeerId string `protobuf:"bytes,8,opt,name=source_peer_id,json=sourcePeerId,proto3" json:"source_peer_id,omitempty"`
	// Encrypted, when set, carries a ChaCha20-Poly1305-sealed copy of the
	// entry's Value for cross-tenant streams; receivers that
	// hold the shared key decrypt it instead of trusting Value directly.
	Encrypted bool `protobuf:"varint,9,opt,name=encrypted,proto3" json:"encrypted,omitempty"`
	Nonce     []byte `protobuf:"bytes,10,opt,name=nonce,proto3" json:"nonce,omitempty"`
}

// Ack is Publish's response.
type Ack struct {
	Applied uint64 `protobuf:"varint,1,opt,name=applied,proto3" json:"applied,omitempty"`
}

type HealthRequest struct{}

// StatusResponse carries the node's health view
// ({running, peer_id, server:{...}, clients:{peer_id:{...}}}) flattened
// into a JSON blob (DetailsJson) since a hand-bootstrapped message has no
// nested-map codegen; callers unmarshal DetailsJson for the structured view.
type StatusResponse struct {
	Running     bool   `protobuf:"varint,1,opt,name=running,proto3" json:"running,omitempty"`
	PeerId      string `protobuf:"bytes,2,opt,name=peer_id,json=peerId,proto3" json:"peer_id,omitempty"`
	DetailsJson string `protobuf:"bytes,3,opt,name=details_json,json=detailsJson,proto3" json:"details_json,omitempty"`
}

// Client API

type ReplicationServiceClient interface {
	Subscribe(ctx context.Context, opts ...grpc.CallOption) (ReplicationService_SubscribeClient, error)
	Publish(ctx context.Context, opts ...grpc.CallOption) (ReplicationService_PublishClient, error)
	HealthCheck(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*StatusResponse, error)
}

type replicationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewReplicationServiceClient(cc grpc.ClientConnInterface) ReplicationServiceClient {
	return &replicationServiceClient{cc}
}

func (c *replicationServiceClient) Subscribe(ctx context.Context, opts ...grpc.CallOption) (ReplicationService_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &_ReplicationService_serviceDesc.Streams[0], "/replication.ReplicationService/Subscribe", opts...)
	if err != nil {
		return nil, err
	}
	x := &replicationServiceSubscribeClient{stream}
	return x, nil
}

type ReplicationService_SubscribeClient interface {
	Send(*WatermarkOffer) error
	Recv() (*WALEntry, error)
	grpc.ClientStream
}

type replicationServiceSubscribeClient struct {
	grpc.ClientStream
}

func (x *replicationServiceSubscribeClient) Send(m *WatermarkOffer) error {
	return x.ClientStream.SendMsg(m)
}

func (x *replicationServiceSubscribeClient) Recv() (*WALEntry, error) {
	m := new(WALEntry)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *replicationServiceClient) Publish(ctx context.Context, opts ...grpc.CallOption) (ReplicationService_PublishClient, error) {
	stream, err := c.cc.NewStream(ctx, &_ReplicationService_serviceDesc.Streams[1], "/replication.ReplicationService/Publish", opts...)
	if err != nil {
		return nil, err
	}
	x := &replicationServicePublishClient{stream}
	return x, nil
}

type ReplicationService_PublishClient interface {
	Send(*WALEntry) error
	CloseAndRecv() (*Ack, error)
	grpc.ClientStream
}

type replicationServicePublishClient struct {
	grpc.ClientStream
}

func (x *replicationServicePublishClient) Send(m *WALEntry) error {
	return x.ClientStream.SendMsg(m)
}

func (x *replicationServicePublishClient) CloseAndRecv() (*Ack, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(Ack)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *replicationServiceClient) HealthCheck(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	err := c.cc.Invoke(ctx, "/replication.ReplicationService/HealthCheck", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Server API

type ReplicationServiceServer interface {
	Subscribe(ReplicationService_SubscribeServer) error
	Publish(ReplicationService_PublishServer) error
	HealthCheck(context.Context, *HealthRequest) (*StatusResponse, error)
}

// UnimplementedReplicationServiceServer can be embedded for forward compatibility.
type UnimplementedReplicationServiceServer struct{}

func (*UnimplementedReplicationServiceServer) Subscribe(ReplicationService_SubscribeServer) error {
	return status.Errorf(codes.Unimplemented, "method Subscribe not implemented")
}
func (*UnimplementedReplicationServiceServer) Publish(ReplicationService_PublishServer) error {
	return status.Errorf(codes.Unimplemented, "method Publish not implemented")
}
func (*UnimplementedReplicationServiceServer) HealthCheck(context.Context, *HealthRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method HealthCheck not implemented")
}

func RegisterReplicationServiceServer(s *grpc.Server, srv ReplicationServiceServer) {
	s.RegisterService(&_ReplicationService_serviceDesc, srv)
}

func _ReplicationService_Subscribe_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ReplicationServiceServer).Subscribe(&replicationServiceSubscribeServer{stream})
}

type ReplicationService_SubscribeServer interface {
	Send(*WALEntry) error
	Recv() (*WatermarkOffer, error)
	grpc.ServerStream
}

type replicationServiceSubscribeServer struct {
	grpc.ServerStream
}

func (x *replicationServiceSubscribeServer) Send(m *WALEntry) error {
	return x.ServerStream.SendMsg(m)
}

func (x *replicationServiceSubscribeServer) Recv() (*WatermarkOffer, error) {
	m := new(WatermarkOffer)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _ReplicationService_Publish_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ReplicationServiceServer).Publish(&replicationServicePublishServer{stream})
}

type ReplicationService_PublishServer interface {
	SendAndClose(*Ack) error
	Recv() (*WALEntry, error)
	grpc.ServerStream
}

type replicationServicePublishServer struct {
	grpc.ServerStream
}

func (x *replicationServicePublishServer) SendAndClose(m *Ack) error {
	return x.ServerStream.SendMsg(m)
}

func (x *replicationServicePublishServer) Recv() (*WALEntry, error) {
	m := new(WALEntry)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _ReplicationService_HealthCheck_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicationServiceServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/replication.ReplicationService/HealthCheck",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplicationServiceServer).HealthCheck(ctx, req.(*HealthRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _ReplicationService_serviceDesc = grpc.ServiceDesc{
	ServiceName: "replication.ReplicationService",
	HandlerType: (*ReplicationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "HealthCheck",
			Handler:    _ReplicationService_HealthCheck_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       _ReplicationService_Subscribe_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "Publish",
			Handler:       _ReplicationService_Publish_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "replication.proto",
}

// Command ingestd is the process entrypoint: load configuration,
// construct the ingestcore facade, and expose only a liveness surface —
// no domain RPCs, per spec.md §1's "no HTTP/gRPC surface" Non-goal.
//
// Shape follows store-core/cmd/store-server/main.go (env config → store
// construction → grpc.NewServer → health registration → Serve), with
// every domain service registration removed: this module's callers are
// expected to embed pkg/ingestcore directly as a Go library, so the only
// thing worth serving over the wire is the health check a process
// supervisor polls.
package main

import (
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nucleus/ingestcore/internal/config"
	"github.com/nucleus/ingestcore/pkg/ingestcore"
)

func main() {
	cfg := config.FromEnv()

	svc, err := ingestcore.New(cfg)
	if err != nil {
		log.Fatalf("ingestcore init: %v", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Printf("ingestcore close: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	log.Printf("ingestd health check listening on %s", cfg.GRPCHealthAddr)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

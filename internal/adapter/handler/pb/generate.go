// Package pb holds the generated messages and service stubs of
// sales.v1.PurchaseService.
package pb

//go:generate protoc -I ../../../../proto --go_out=../../../.. --go_opt=module=github.com/rl1809/sales-orchestrator --go-grpc_out=../../../.. --go-grpc_opt=module=github.com/rl1809/sales-orchestrator sales/v1/purchase.proto

package workflow

import "github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"

// PaymentOrderGraph builds the payment order graph: finance, manager and CEO
// approvals, followed by an optional revocation chain through the same roles.
// APPROVED_CEO is terminal but accepts REVOKE to open the chain. REJECT inside
// the chain returns to APPROVED_CEO instead of REJECTED, so a refused
// revocation leaves the approval standing.
func PaymentOrderGraph() (*StageGraph, error) {
	b := NewGraphBuilder(entity.DocumentPaymentOrder)

	b.Configure(StagePending).
		RequireRole(entity.RoleFinance).
		Approve(StageApprovedFinance)

	b.Configure(StageApprovedFinance).
		RequireRole(entity.RoleManager).
		Approve(StageApprovedManager).
		Revoke(StagePending, entity.RoleFinance)

	b.Configure(StageApprovedManager).
		RequireRole(entity.RoleCEO).
		Approve(StageApprovedCEO).
		Revoke(StageApprovedFinance, entity.RoleManager)

	b.Configure(StageApprovedCEO).
		Terminal().
		Revoke(StageRevocationPendingFinance, entity.RoleFinance)

	// Rejecting a revocation request leaves the payment approved.
	b.Configure(StageRevocationPendingFinance).
		RequireRole(entity.RoleFinance).
		Approve(StageRevocationPendingManager).
		RejectTo(StageApprovedCEO)

	b.Configure(StageRevocationPendingManager).
		RequireRole(entity.RoleManager).
		Approve(StageRevocationPendingCEO).
		RejectTo(StageApprovedCEO)

	b.Configure(StageRevocationPendingCEO).
		RequireRole(entity.RoleCEO).
		Approve(StageRevoked).
		RejectTo(StageApprovedCEO)

	b.Configure(StageRevoked).Terminal()

	return b.Build(StagePending)
}

// ExitPermitGraph builds the exit permit graph: sales, factory manager,
// warehouse keeper and security guard.
func ExitPermitGraph() (*StageGraph, error) {
	b := NewGraphBuilder(entity.DocumentExitPermit)

	b.Configure(StagePendingSales).
		RequireRole(entity.RoleSales).
		Approve(StagePendingFactory)

	b.Configure(StagePendingFactory).
		RequireRole(entity.RoleFactoryManager).
		Approve(StagePendingWarehouse).
		Revoke(StagePendingSales, entity.RoleSales)

	b.Configure(StagePendingWarehouse).
		RequireRole(entity.RoleWarehouseKeeper).
		Approve(StagePendingSecurity).
		Revoke(StagePendingFactory, entity.RoleFactoryManager)

	// Editing after the warehouse signed off sends the permit back for re-weighing.
	b.Configure(StagePendingSecurity).
		RequireRole(entity.RoleSecurityGuard).
		Approve(StageExited).
		Revoke(StagePendingWarehouse, entity.RoleWarehouseKeeper).
		EditResets(StagePendingWarehouse, entity.RoleWarehouseKeeper)

	b.Configure(StageExited).Terminal()

	return b.Build(StagePendingSales)
}

// SecurityReportGraph builds the graph shared by the three security report
// types: registrant, supervisor, factory manager and CEO. Archived reports
// can be reopened by the CEO.
func SecurityReportGraph(documentType entity.DocumentType) (*StageGraph, error) {
	b := NewGraphBuilder(documentType)

	b.Configure(StagePendingRegistrant).
		RequireRole(entity.RoleSecurityGuard).
		Approve(StagePendingSupervisor)

	b.Configure(StagePendingSupervisor).
		RequireRole(entity.RoleSecuritySupervisor).
		Approve(StagePendingFactory).
		Revoke(StagePendingRegistrant, entity.RoleSecurityGuard)

	b.Configure(StagePendingFactory).
		RequireRole(entity.RoleFactoryManager).
		Approve(StagePendingCEO).
		Revoke(StagePendingSupervisor, entity.RoleSecuritySupervisor).
		EditResets(StagePendingSupervisor, entity.RoleSecuritySupervisor)

	b.Configure(StagePendingCEO).
		RequireRole(entity.RoleCEO).
		Approve(StageArchived).
		Revoke(StagePendingFactory, entity.RoleFactoryManager).
		EditResets(StagePendingSupervisor, entity.RoleSecuritySupervisor)

	b.Configure(StageArchived).
		Terminal().
		Revoke(StagePendingCEO, entity.RoleCEO)

	return b.Build(StagePendingRegistrant)
}

// DefaultRegistry returns the registry with the graphs of every document type
func DefaultRegistry() *Registry {
	graphs := []*StageGraph{
		mustGraph(PaymentOrderGraph()),
		mustGraph(ExitPermitGraph()),
		mustGraph(SecurityReportGraph(entity.DocumentSecurityLog)),
		mustGraph(SecurityReportGraph(entity.DocumentSecurityDelay)),
		mustGraph(SecurityReportGraph(entity.DocumentSecurityIncident)),
	}

	registry, err := NewRegistry(graphs...)
	if err != nil {
		panic(err)
	}
	return registry
}

func mustGraph(g *StageGraph, err error) *StageGraph {
	if err != nil {
		panic(err)
	}
	return g
}

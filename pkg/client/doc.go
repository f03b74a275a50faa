// Package client is the Go SDK for the Delivery Risk Tracker API.
//
// It wraps the JSON endpoints under /api/v1: listing and creating projects,
// recording metrics snapshots, reading a project's evaluated timeline and
// latest risk, downloading the CSV report, and scoring snapshots ad hoc.
//
// # Connecting
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithBearerToken(os.Getenv("RISKCTL_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A token is only needed when the server runs with auth.jwt_secret set;
// read-only calls never need one.
//
// # Recording a snapshot
//
//	res, err := c.AddMetrics(ctx, projectID, client.AddMetricsRequest{
//	    SnapshotDate: "2024-02-01",
//	    Snapshot: risk.Snapshot{
//	        PlannedTasks:   50,
//	        CompletedTasks: 20,
//	        BlockersCount:  3,
//	    },
//	})
//	fmt.Println(res.Risk.Score, res.Risk.Level)
//
// # Errors
//
// Non-2xx responses are returned as *APIError. Use errors.Is with
// ErrNotFound or ErrUnauthorized to branch on the common cases.
package client

// Package worker provides a worker pool for running correction sessions
// in parallel.
//
// A session spends most of its time waiting on the external validation
// service, so batches of messages benefit from more in-flight sessions
// than CPUs.
//
// Example usage:
//
//	pool := worker.NewPool(controller, 4)
//
//	for _, f := range files {
//	    pool.Submit(worker.Job{ID: f.Name, Filename: f.Name, Message: f.Data})
//	}
//
//	batch := pool.CloseAndWait()
//	for _, result := range batch.Results {
//	    if result.Error != nil {
//	        // Handle error
//	    }
//	    // Process result.Session
//	}
package worker

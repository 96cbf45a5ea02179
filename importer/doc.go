// Package importer loads exported resource documents into a cache and
// writes a cache's logical entries back out.
//
// Import runs documents through a worker pool in batches, retrying failed
// writes with exponential backoff and reporting progress as it goes.
// Documents are decoded with the cache's family registry, so book-organized
// resources are chunked exactly as if a loader had written them.
package importer

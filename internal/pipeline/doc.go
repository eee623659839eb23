// Package pipeline runs a batch of seeds and processes the result.
//
// The Coordinator crawls seeds one after another with the same traversal
// configuration and collects the pages per seed. Once the batch has
// returned, a Pipeline of Steps handles the finished run: writing the
// report, storing it in the database and saving pages to disk.
package pipeline

// Package store keeps the service's runs in memory. Each run moves through
// pending, running and then completed or failed. Finished runs are evicted
// once they have not changed for the configured TTL; pending and running
// runs are never evicted.
package store

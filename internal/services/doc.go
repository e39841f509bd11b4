// Package services contains the application services sitting between the
// HTTP transport and the domain packages. Services own caching policy,
// parameter normalization, and cross-package orchestration; handlers stay
// thin and domain packages stay transport-free.
package services

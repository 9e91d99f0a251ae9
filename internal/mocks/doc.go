// Package mocks holds gomock doubles for the port interfaces.
package mocks

//go:generate mockgen -source=../port/retrieval/retrieval.go -destination=retriever.go -package=mocks
//go:generate mockgen -source=../port/cache/cache.go -destination=cache.go -package=mocks
//go:generate mockgen -source=../port/eventbus/eventbus.go -destination=eventbus.go -package=mocks
//go:generate mockgen -source=../port/metrics/metrics.go -destination=metrics.go -package=mocks

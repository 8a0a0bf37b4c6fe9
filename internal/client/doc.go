// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client is the composition root of the sync store.
//
// A [Client] owns the local cache, the backend transport and the file
// transfer, and hands out one [service.DataStore] per collection. Every
// dependency is constructed explicitly by [New]; there is no global state.
package client

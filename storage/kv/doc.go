// Package kv describes the storage capability the owner
// consumes and the plugins that provide it.
//
// A kv plugin is a factory for stores. A store contains zero
// or more named collections. Each collection is created with
// a tag that restricts the type of the values it holds
// (codec.TagDynamic accepts any registered type).
//
//  - Store
//    - Collection "users" (tag 32)
//      - 0: {Alice}
//      - 1: {Bob}
//    - Collection "settings" (dynamic)
//      - "theme": "dark"
//      - "retries": 3
//
// Keys are ints or strings. Values are encoded with the
// store's own adapter table before they reach the engine,
// so every plugin stores the same bytes for the same value.
//
// Opening a collection is potentially expensive and is not
// deduplicated here. The boxes package caches open collections
// and makes sure each name is opened once.
package kv

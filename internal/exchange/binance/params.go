package binance

import "strings"

type param struct {
	key   string
	value string
}

// Params is an ordered set of query parameters. Keys are unique and keep the
// position of their first Set; the order is part of the signed payload.
type Params struct {
	items []param
}

// NewParams builds Params from alternating key/value pairs.
func NewParams(kv ...string) *Params {
	p := &Params{}
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}
	return p
}

// Set adds key or replaces its value in place.
func (p *Params) Set(key, value string) {
	for i := range p.items {
		if p.items[i].key == key {
			p.items[i].value = value
			return
		}
	}
	p.items = append(p.items, param{key: key, value: value})
}

// Get returns the value stored for key.
func (p *Params) Get(key string) (string, bool) {
	for _, it := range p.items {
		if it.key == key {
			return it.value, true
		}
	}
	return "", false
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	keys := make([]string, len(p.items))
	for i, it := range p.items {
		keys[i] = it.key
	}
	return keys
}

// Encode serializes the params as k1=v1&k2=v2 without URL escaping.
func (p *Params) Encode() string {
	var sb strings.Builder
	for i, it := range p.items {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(it.key)
		sb.WriteByte('=')
		sb.WriteString(it.value)
	}
	return sb.String()
}

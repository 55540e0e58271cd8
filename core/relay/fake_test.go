package relay_test

import "sync"

type delivery struct {
	ids       []string
	broadcast bool
	msg       string
	text      bool
}

// fakePusher knows a fixed set of local session ids and records deliveries.
type fakePusher struct {
	mu         sync.Mutex
	local      map[string]bool
	deliveries []delivery
}

func newFakePusher(ids ...string) *fakePusher {
	p := &fakePusher{local: make(map[string]bool)}
	for _, id := range ids {
		p.local[id] = true
	}
	return p
}

func (p *fakePusher) Send(id string, msg []byte, isText bool) bool {
	return p.SendMany([]string{id}, msg, isText) == 1
}

func (p *fakePusher) SendMany(ids []string, msg []byte, isText bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var hit []string
	for _, id := range ids {
		if p.local[id] {
			hit = append(hit, id)
		}
	}
	if len(hit) > 0 {
		p.deliveries = append(p.deliveries, delivery{ids: hit, msg: string(msg), text: isText})
	}
	return len(hit)
}

func (p *fakePusher) Broadcast(msg []byte, isText bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, delivery{broadcast: true, msg: string(msg), text: isText})
	return len(p.local)
}

func (p *fakePusher) all() []delivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]delivery(nil), p.deliveries...)
}

package eventsclient

import "sync"

// observers is an ordered list of callbacks that can be cancelled.
type observers[F any] struct {
	mu     sync.Mutex
	nextID int
	list   []observer[F]
}

type observer[F any] struct {
	id int
	fn F
}

func (o *observers[F]) add(fn F) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.list = append(o.list, observer[F]{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, ob := range o.list {
			if ob.id == id {
				o.list = append(o.list[:i:i], o.list[i+1:]...)
				return
			}
		}
	}
}

// each calls visit for every observer registered at call time, without
// holding the lock, so observers may add or cancel observers.
func (o *observers[F]) each(visit func(F)) {
	o.mu.Lock()
	fns := make([]F, len(o.list))
	for i, ob := range o.list {
		fns[i] = ob.fn
	}
	o.mu.Unlock()

	for _, fn := range fns {
		visit(fn)
	}
}

package main

import (
	"math/rand"

	"github.com/btree-query-bench/pagetree/dbms/index"
	"github.com/go-faker/faker/v4"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
	Churn     WorkloadType = "Churn (delete/insert)"
)

// ExecuteWorkload runs ops operations of the given mix over keys in
// [0, keySpace).
func ExecuteWorkload(idx index.Index, wType WorkloadType, ops, keySpace int, values *ValuePool) error {
	for i := 0; i < ops; i++ {
		choice := rand.Intn(100)
		key := int64(rand.Intn(keySpace))

		var err error
		switch wType {
		case OLTP:
			if choice < 90 {
				_, err = idx.Get(key)
			} else {
				err = idx.Insert(key, values.Next())
			}
		case OLAP:
			if choice < 10 {
				_, err = idx.Get(key)
			} else {
				err = idx.Insert(key, values.Next())
			}
		case Reporting:
			err = scan(idx, key, key+100)
		case Churn:
			if err = idx.Delete(key); err == nil {
				err = idx.Insert(key, values.Next())
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func scan(idx index.Index, start, end int64) error {
	it, err := idx.Range(start, end)
	if err != nil {
		return err
	}
	for it.Next() {
	}
	if err := it.Error(); err != nil {
		it.Close()
		return err
	}
	return it.Close()
}

// ValuePool hands out pre-generated fixed-size values in rotation.
type ValuePool struct {
	vals [][]byte
	next int
}

// NewValuePool generates n values of exactly size bytes from faker words.
func NewValuePool(n, size int) *ValuePool {
	p := &ValuePool{vals: make([][]byte, n)}
	for i := range p.vals {
		v := make([]byte, 0, size)
		for len(v) < size {
			v = append(v, faker.Word()...)
		}
		p.vals[i] = v[:size]
	}
	return p
}

func (p *ValuePool) Next() []byte {
	v := p.vals[p.next]
	p.next = (p.next + 1) % len(p.vals)
	return v
}

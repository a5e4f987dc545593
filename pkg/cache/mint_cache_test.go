package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestMintCachePriceRoundTrip(t *testing.T) {
	c := NewMintCache()

	if _, _, ok := c.PriceWithAge("mintA"); ok {
		t.Fatal("empty cache should miss")
	}

	c.SetPrice("mintA", 0.000028)
	price, age, ok := c.PriceWithAge("mintA")
	if !ok {
		t.Fatal("expected hit")
	}
	if price != 0.000028 {
		t.Errorf("price = %v", price)
	}
	if age < 0 {
		t.Errorf("age = %v", age)
	}
}

func TestMintCacheDecimalsFirstWriteSticks(t *testing.T) {
	c := NewMintCache()

	if _, ok := c.Decimals("mintA"); ok {
		t.Fatal("decimals should miss before set")
	}
	c.SetDecimals("mintA", 6)
	c.SetDecimals("mintA", 9)
	dec, ok := c.Decimals("mintA")
	if !ok || dec != 6 {
		t.Errorf("decimals = %d/%v, want 6", dec, ok)
	}
}

func TestMintCacheDecimalsIndependentOfPrice(t *testing.T) {
	c := NewMintCache()
	c.SetDecimals("mintA", 6)
	if _, _, ok := c.PriceWithAge("mintA"); ok {
		t.Error("decimals-only entry must not report a price")
	}
	c.SetPrice("mintA", 1.5)
	if dec, ok := c.Decimals("mintA"); !ok || dec != 6 {
		t.Error("setting price must not clobber decimals")
	}
}

func TestMintCacheConcurrent(t *testing.T) {
	c := NewMintCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mint := fmt.Sprintf("mint%d", j%10)
				c.SetPrice(mint, float64(n*j))
				c.PriceWithAge(mint)
				c.SetDecimals(mint, 6)
				c.Decimals(mint)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("len = %d, want 10", c.Len())
	}
}

package domain

import "testing"

func product(id string, price int64) Product {
	return Product{ID: id, Title: "product " + id, Price: price}
}

func assertTotals(t *testing.T, c *Cart, qty int, price int64) {
	t.Helper()
	if c.TotalQuantity != qty {
		t.Errorf("expected total quantity %d, got %d", qty, c.TotalQuantity)
	}
	if c.TotalPrice != price {
		t.Errorf("expected total price %d, got %d", price, c.TotalPrice)
	}

	var sumQty int
	var sumPrice int64
	for _, line := range c.Lines {
		sumQty += line.Quantity
		sumPrice += line.LineTotal
	}
	if sumQty != c.TotalQuantity || sumPrice != c.TotalPrice {
		t.Errorf("totals (%d, %d) do not match lines (%d, %d)", c.TotalQuantity, c.TotalPrice, sumQty, sumPrice)
	}
}

func TestCart_Add(t *testing.T) {
	t.Run("sums quantities and prices across products", func(t *testing.T) {
		c := NewCart()
		c.Add(product("a", 500), "a", 2)
		c.Add(product("b", 1000), "b", 1)

		assertTotals(t, c, 3, 2000)
		if len(c.Lines) != 2 {
			t.Errorf("expected 2 lines, got %d", len(c.Lines))
		}
	})

	t.Run("accumulates repeated adds on the same line", func(t *testing.T) {
		c := NewCart()
		c.Add(product("a", 250), "a", 1)
		c.Add(product("a", 250), "a", 3)
		c.Add(product("b", 100), "b", 2)
		c.Add(product("a", 250), "a", 1)

		assertTotals(t, c, 7, 5*250+2*100)
		if got := c.Lines["a"].LineTotal; got != 1250 {
			t.Errorf("expected line total 1250, got %d", got)
		}
	})

	t.Run("clamps quantity to one", func(t *testing.T) {
		for _, qty := range []int{0, -4} {
			c := NewCart()
			c.Add(product("a", 300), "a", qty)
			assertTotals(t, c, 1, 300)
		}
	})

	t.Run("works on a cart decoded without lines", func(t *testing.T) {
		c := &Cart{}
		c.Add(product("a", 300), "a", 2)
		assertTotals(t, c, 2, 600)
	})
}

func TestCart_ChangeQuantity(t *testing.T) {
	t.Run("sets quantity and recomputes totals", func(t *testing.T) {
		c := NewCart()
		c.Add(product("a", 500), "a", 1)
		if !c.ChangeQuantity("a", 4) {
			t.Fatal("expected the line to match")
		}

		lines := c.LineList()
		if len(lines) != 1 {
			t.Fatalf("expected 1 line, got %d", len(lines))
		}
		if lines[0].Quantity != 4 || lines[0].LineTotal != 2000 {
			t.Errorf("unexpected line %+v", lines[0])
		}
		assertTotals(t, c, 4, 2000)
	})

	t.Run("zero quantity zeroes the line total", func(t *testing.T) {
		c := NewCart()
		c.Add(product("a", 500), "a", 2)
		c.Add(product("b", 1000), "b", 1)
		c.ChangeQuantity("a", 0)

		if got := c.Lines["a"].LineTotal; got != 0 {
			t.Errorf("expected line total 0, got %d", got)
		}
		assertTotals(t, c, 1, 1000)
	})

	t.Run("unknown product is a no-op", func(t *testing.T) {
		c := NewCart()
		c.Add(product("a", 500), "a", 2)
		if c.ChangeQuantity("missing", 9) {
			t.Error("expected no line to match")
		}
		assertTotals(t, c, 2, 1000)
	})
}

func TestCart_Remove(t *testing.T) {
	t.Run("removes the line and its contribution", func(t *testing.T) {
		c := NewCart()
		c.Add(product("a", 500), "a", 2)
		c.Add(product("b", 1000), "b", 1)

		if !c.Remove("a") {
			t.Error("expected remove to report success")
		}
		assertTotals(t, c, 1, 1000)
		if _, ok := c.Lines["a"]; ok {
			t.Error("expected line a to be gone")
		}
	})

	t.Run("unknown product leaves totals unchanged", func(t *testing.T) {
		c := NewCart()
		c.Add(product("a", 500), "a", 2)

		if c.Remove("missing") {
			t.Error("expected remove to report nothing removed")
		}
		assertTotals(t, c, 2, 1000)
	})

	t.Run("removing the last line empties the cart", func(t *testing.T) {
		c := NewCart()
		c.Add(product("a", 500), "a", 1)
		c.Remove("a")

		if !c.IsEmpty() {
			t.Error("expected cart to be empty")
		}
		assertTotals(t, c, 0, 0)
	})
}

func TestCart_Serialization(t *testing.T) {
	c := NewCart()
	c.Add(product("b", 1000), "b", 1)
	c.Add(product("a", 500), "a", 2)

	data, err := SerializeCart(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored, err := DeserializeCart(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTotals(t, restored, 3, 2000)

	lines := restored.LineList()
	if lines[0].Product.ID != "a" || lines[1].Product.ID != "b" {
		t.Errorf("expected lines ordered by key, got %s, %s", lines[0].Product.ID, lines[1].Product.ID)
	}

	if _, err := DeserializeCart("{"); err == nil {
		t.Error("expected error for malformed cart")
	}
}

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "CANCELLED", "EXPIRED", "COMPLETED"} {
		status, err := ParseOrderStatus(s)
		if err != nil {
			t.Errorf("unexpected error for %s: %v", s, err)
		}
		if string(status) != s {
			t.Errorf("expected %s, got %s", s, status)
		}
	}

	if _, err := ParseOrderStatus("REFUNDED"); err == nil {
		t.Error("expected error for unknown status")
	}
}

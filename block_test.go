package coherence

import "testing"

func TestNewBlockStartsInvalid(t *testing.T) {
	b := newBlock(5)
	v := b.View()
	if v.State != Invalid {
		t.Errorf("newBlock state = %v, want Invalid", v.State)
	}
	if v.Address != 5 {
		t.Errorf("newBlock address = %d, want 5", v.Address)
	}
}

func TestBlockInstall(t *testing.T) {
	b := newBlock(0)
	b.Install(7, 0x1234, Exclusive)
	v := b.View()
	if v.Address != 7 || v.Data != 0x1234 || v.State != Exclusive {
		t.Errorf("View() = %+v, want {7 0x1234 Exclusive}", v)
	}
}

func TestBlockSetState(t *testing.T) {
	b := newBlock(0)
	b.Install(3, 0xff, Modified)
	old := b.SetState(Owned)
	if old != Modified {
		t.Errorf("SetState returned old = %v, want Modified", old)
	}
	if got := b.StateOf(); got != Owned {
		t.Errorf("StateOf() = %v, want Owned", got)
	}
	if v := b.View(); v.Data != 0xff || v.Address != 3 {
		t.Errorf("SetState must not touch tag/data, got %+v", v)
	}
}

func TestBlockSetData(t *testing.T) {
	b := newBlock(0)
	b.Install(2, 0x0001, Shared)
	b.SetData(0x0002, Modified)
	v := b.View()
	if v.Data != 0x0002 || v.State != Modified || v.Address != 2 {
		t.Errorf("SetData result = %+v, want {2 0x0002 Modified}", v)
	}
}

package server

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func placeUnit(t *testing.T, r *Registry, id UnitID, x, y float64) {
	t.Helper()
	r.UpsertOnConnect(id)
	if err := r.ApplyMove(id, x, y, 0); err != nil {
		t.Fatalf("place unit %d: %v", id, err)
	}
}

func claimAngle(v float64) *float64 { return &v }

func TestMoveWithoutObstacles(t *testing.T) {
	r := NewRegistry()
	placeUnit(t, r, 1, 50, 50)

	res, err := NewValidator(r).Apply(1, MoveRequest{DeltaX: 5, ClientX: 55, ClientY: 50, ClientAngle: claimAngle(0)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Unit.X != 55 || res.Unit.Y != 50 || res.Unit.Angle != 0 {
		t.Fatalf("unexpected result %+v", res.Unit)
	}
	if !res.Moved || res.Corrected {
		t.Fatalf("expected moved without correction, got %+v", res)
	}
	if u, _ := r.Get(1); u.X != 55 {
		t.Fatalf("registry not updated: %+v", u)
	}
}

func TestMovePushedOutOfOnlineUnit(t *testing.T) {
	r := NewRegistry()
	placeUnit(t, r, 1, 50, 50)
	placeUnit(t, r, 2, 80, 50)

	res, err := NewValidator(r).Apply(2, MoveRequest{DeltaX: -21, ClientX: 59, ClientY: 50, ClientAngle: claimAngle(math.Pi)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Unit.X != 70 || res.Unit.Y != 50 {
		t.Fatalf("expected push-out to (70,50), got (%f,%f)", res.Unit.X, res.Unit.Y)
	}
	if d := Distance(res.Unit.Position(), Point{50, 50}); d != 2*Radius {
		t.Fatalf("expected distance exactly %f, got %f", 2*Radius, d)
	}
	if !res.Corrected {
		t.Fatalf("client predicted (59,50); expected correction")
	}
	if res.Unit.Angle != math.Pi {
		t.Fatalf("expected angle pi for leftward displacement, got %f", res.Unit.Angle)
	}
}

func TestMoveIgnoresOfflineUnits(t *testing.T) {
	r := NewRegistry()
	placeUnit(t, r, 1, 50, 50)
	_ = r.MarkOffline(1)
	placeUnit(t, r, 2, 80, 50)

	res, err := NewValidator(r).Apply(2, MoveRequest{DeltaX: -21})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Unit.X != 59 {
		t.Fatalf("offline unit should not collide, got x=%f", res.Unit.X)
	}
}

func TestMoveClampedAtWall(t *testing.T) {
	r := NewRegistry()
	placeUnit(t, r, 1, RoomWidth-5, 100)

	res, err := NewValidator(r).Apply(1, MoveRequest{DeltaX: 20})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Unit.X != 289 || res.Unit.Y != 100 {
		t.Fatalf("expected clamp to (289,100), got (%f,%f)", res.Unit.X, res.Unit.Y)
	}
}

func TestZeroMoveKeepsAngle(t *testing.T) {
	r := NewRegistry()
	placeUnit(t, r, 1, 50, 50)
	_ = r.ApplyMove(1, 50, 50, 1.25)

	res, err := NewValidator(r).Apply(1, MoveRequest{ClientX: 50, ClientY: 50, ClientAngle: claimAngle(1.25)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Moved {
		t.Fatalf("zero delta must not count as moved")
	}
	if res.Unit.Angle != 1.25 {
		t.Fatalf("angle changed on zero move: %f", res.Unit.Angle)
	}
	if res.Corrected {
		t.Fatalf("matching claim must not be corrected")
	}
}

func TestBlockedMoveAgainstWallKeepsAngle(t *testing.T) {
	r := NewRegistry()
	placeUnit(t, r, 1, 11, 100)
	_ = r.ApplyMove(1, 11, 100, 2)

	res, err := NewValidator(r).Apply(1, MoveRequest{DeltaX: -4, ClientX: 11, ClientY: 100, ClientAngle: claimAngle(2)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Moved || res.Unit.Angle != 2 || res.Corrected {
		t.Fatalf("blocked move should be a no-op, got %+v", res)
	}
}

func TestMissingClientAngleIsCorrected(t *testing.T) {
	r := NewRegistry()
	placeUnit(t, r, 1, 50, 50)
	res, err := NewValidator(r).Apply(1, MoveRequest{DeltaX: 1, ClientX: 51, ClientY: 50})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Corrected {
		t.Fatalf("missing client angle should trigger correction")
	}
}

func TestPushIntoWallRejectedWhenStillOverlapping(t *testing.T) {
	r := NewRegistry()
	placeUnit(t, r, 1, 11, 100) // 贴左墙
	placeUnit(t, r, 2, 40, 100)

	// 穿到障碍左侧，推出后越过墙体，裁剪回来仍与障碍重叠
	res, err := NewValidator(r).Apply(2, MoveRequest{DeltaX: -32})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Moved || res.Unit.X != 40 {
		t.Fatalf("expected move to be rejected, got %+v", res.Unit)
	}
	if d := Distance(res.Unit.Position(), Point{11, 100}); d < 2*Radius {
		t.Fatalf("overlap after move: %f", d)
	}
}

func TestMoveUnknownUnit(t *testing.T) {
	_, err := NewValidator(NewRegistry()).Apply(3, MoveRequest{DeltaX: 1})
	if !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}

func TestMoveDeterministic(t *testing.T) {
	build := func() *Registry {
		r := NewRegistry()
		placeUnit(t, r, 1, 100, 100)
		placeUnit(t, r, 2, 118, 112)
		placeUnit(t, r, 3, 104, 125)
		placeUnit(t, r, 4, 140, 140)
		return r
	}
	var first Unit
	for i := 0; i < 10; i++ {
		r := build()
		res, err := NewValidator(r).Apply(4, MoveRequest{DeltaX: -30, DeltaY: -22})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if i == 0 {
			first = res.Unit
			continue
		}
		if res.Unit != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, res.Unit, first)
		}
	}
}

func TestRandomMovesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := NewRegistry()
	// 初始摆放互不重叠
	ids := []UnitID{1, 2, 3, 4, 5, 6}
	for i, id := range ids {
		placeUnit(t, r, id, 30+float64(i%3)*60, 40+float64(i/3)*60)
	}
	v := NewValidator(r)

	for step := 0; step < 5000; step++ {
		id := ids[rng.Intn(len(ids))]
		if rng.Intn(50) == 0 {
			// 偶尔下线再上线
			_ = r.MarkOffline(id)
			continue
		}
		if u, _ := r.Get(id); !u.Online {
			// 原位置可能已被占用，上线时由 Settle 挪开
			r.UpsertOnConnect(id)
			if _, err := v.Settle(id); err != nil {
				t.Fatalf("settle: %v", err)
			}
			continue
		}
		before, _ := r.Get(id)
		req := MoveRequest{DeltaX: rng.Float64()*16 - 8, DeltaY: rng.Float64()*16 - 8}
		res, err := v.Apply(id, req)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if !res.Moved && res.Unit.Angle != before.Angle {
			t.Fatalf("angle changed without displacement")
		}

		online := r.Online()
		for i := range online {
			u := online[i]
			if u.X < Radius+WallThickness || u.X > RoomWidth-Radius-WallThickness ||
				u.Y < Radius+WallThickness || u.Y > RoomHeight-Radius-WallThickness {
				t.Fatalf("step %d: unit %d out of bounds (%f,%f)", step, u.ID, u.X, u.Y)
			}
			for j := i + 1; j < len(online); j++ {
				if d := Distance(u.Position(), online[j].Position()); d < 2*Radius-overlapTolerance {
					t.Fatalf("step %d: units %d and %d overlap (%f)", step, u.ID, online[j].ID, d)
				}
			}
		}
	}
}

func TestSettleMovesUnitOffOccupiedSpawn(t *testing.T) {
	r := NewRegistry()
	v := NewValidator(r)
	r.UpsertOnConnect(1)
	r.UpsertOnConnect(2) // 同样出生在 (11,11)

	u, err := v.Settle(2)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	first, _ := r.Get(1)
	if first.Position() != SpawnPoint {
		t.Fatalf("unit already in place must not move: %+v", first)
	}
	if d := Distance(u.Position(), first.Position()); d < 2*Radius-overlapTolerance {
		t.Fatalf("settled unit still overlaps (%f): %+v", d, u)
	}
	if stored, _ := r.Get(2); stored.Position() != u.Position() {
		t.Fatalf("settled position not persisted: %+v vs %+v", stored, u)
	}
}

func TestSettleLeavesFreeUnitAlone(t *testing.T) {
	r := NewRegistry()
	v := NewValidator(r)
	placeUnit(t, r, 1, 50, 50)
	placeUnit(t, r, 2, 100, 50)
	before := r.Version()

	u, err := v.Settle(2)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if u.X != 100 || u.Y != 50 || r.Version() != before {
		t.Fatalf("non-overlapping unit must stay put: %+v", u)
	}
}

func TestSettleFallsBackToFreeSpotInCorner(t *testing.T) {
	r := NewRegistry()
	v := NewValidator(r)
	// 出生点两侧被占：推出后被墙裁剪回原处，仍重叠
	placeUnit(t, r, 1, 26, 11)
	placeUnit(t, r, 2, 11, 26)
	r.UpsertOnConnect(4)

	u, err := v.Settle(4)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if u.X != 51 || u.Y != 11 {
		t.Fatalf("expected first free grid spot (51,11), got %+v", u)
	}
	for _, other := range r.OnlineExcept(4) {
		if d := Distance(u.Position(), other.Position()); d < 2*Radius-overlapTolerance {
			t.Fatalf("settled unit overlaps %d (%f): %+v", other.ID, d, u)
		}
	}
	if ClampToRoom(u.Position()) != u.Position() {
		t.Fatalf("settled unit out of bounds: %+v", u)
	}
}

func TestSettleUnknownUnit(t *testing.T) {
	v := NewValidator(NewRegistry())
	if _, err := v.Settle(9); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("expected ErrUnknownUnit, got %v", err)
	}
}

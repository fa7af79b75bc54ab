package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_RepoConfigs(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Weapons.BareHands == nil || c.Weapons.BareHands.Name != BareHandsName {
		t.Fatalf("missing bare hands")
	}
	if len(c.Armours.List) == 0 || len(c.Potions.List) == 0 || len(c.Monsters.List) == 0 {
		t.Fatalf("expected non-empty catalogs")
	}
	if len(c.Digest) != 64 {
		t.Fatalf("unexpected digest %q", c.Digest)
	}
	for _, o := range c.Objects() {
		if o == c.Weapons.BareHands {
			t.Fatalf("bare hands must not be a ground item")
		}
	}
}

func TestLoad_DigestIsStable(t *testing.T) {
	a, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.Digest != b.Digest {
		t.Fatalf("digest changed between loads")
	}
}

func TestLoad_RejectsBadReferences(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"tiles.json", "weapons.json", "armours.json", "potions.json"} {
		b, err := os.ReadFile(filepath.Join("../../../configs", f))
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f), b, 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	bad := `[{"id":1,"name":"ghost","level":1,"max_hp":5,"weapon_id":9999,"behavior":"WANDER_ATTACK","tile":1}]`
	if err := os.WriteFile(filepath.Join(dir, "monsters.json"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "unknown weapon") {
		t.Fatalf("expected unknown weapon error, got %v", err)
	}
}

func TestWeaponCatalog_RequiresBareHands(t *testing.T) {
	var c WeaponCatalog
	err := c.load([]byte(`[{"id":1,"name":"Club","num_attack_dice":1,"attack_dice_size":4,"hit_rating":10}]`))
	if err == nil {
		t.Fatalf("expected error without bare hands")
	}
}

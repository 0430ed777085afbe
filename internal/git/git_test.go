package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/variables/income.py b/variables/income.py
index 1111111..2222222 100644
--- a/variables/income.py
+++ b/variables/income.py
@@ -3,0 +4,2 @@ from policyengine_us.model_api import *
+# new comment
+
@@ -20 +22 @@ class gross_income(Variable):
-    adds = ["wages"]
+    adds = ["wages", "self_employment_income"]
@@ -30,2 +31,0 @@ class income_tax(Variable):
-    unit = USD
-    label = "Income tax"
diff --git a/variables/old.py b/variables/old.py
deleted file mode 100644
index 3333333..0000000
--- a/variables/old.py
+++ /dev/null
@@ -1,3 +0,0 @@
-class old(Variable):
-    pass
-
`

func TestParseDiff(t *testing.T) {
	changes, err := parseDiff([]byte(sampleDiff))
	require.NoError(t, err)
	require.Len(t, changes, 2)

	t.Run("Modified file", func(t *testing.T) {
		f := changes[0]
		assert.Equal(t, "variables/income.py", f.Path)
		assert.False(t, f.Deleted)
		assert.Equal(t, []int{4, 5, 22, 31}, f.ChangedLines)
	})

	t.Run("Deleted file", func(t *testing.T) {
		f := changes[1]
		assert.Equal(t, "variables/old.py", f.Path)
		assert.True(t, f.Deleted)
		assert.Empty(t, f.ChangedLines)
	})

	t.Run("Touches", func(t *testing.T) {
		f := changes[0]
		assert.True(t, f.Touches(20, 25))
		assert.True(t, f.Touches(31, 31))
		assert.False(t, f.Touches(6, 21))
		assert.False(t, f.Touches(32, 40))
	})
}

func TestParseDiff_Malformed(t *testing.T) {
	_, err := parseDiff([]byte("diff --git a/x.py b/x.py\n@@ nonsense @@\n"))
	assert.Error(t, err)

	changes, err := parseDiff(nil)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

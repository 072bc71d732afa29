package hooks

const helpersJS = `
(function(){
  function field(obj, path) {
    if (!obj || typeof path !== "string" || path === "") return null;
    const parts = path.split(".");
    let cur = obj;
    for (const p of parts) {
      if (cur == null) return null;
      cur = cur[p];
    }
    return (cur === undefined) ? null : cur;
  }

  function count(v) {
    if (Array.isArray(v)) return v.length;
    if (typeof v === "number") return v;
    return 0;
  }

  function truncate(s, n) {
    if (typeof s !== "string") return "";
    if (s.length <= n) return s;
    return s.slice(0, Math.max(0, n - 1)) + "…";
  }

  globalThis.forge = {
    field,
    count,
    truncate,
  };
})();
`

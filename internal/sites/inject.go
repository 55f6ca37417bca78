package sites

import "bytes"

// protectionScript blocks hosted pages from being saved and opened locally:
// when the page runs under file:// it replaces the document with a notice.
// Injected server-side into every served HTML file.
const protectionScript = `<script>
(function() {
    function blockLocalExecution() {
        if (window.location.protocol === 'file:') {
            var msg = '<div style="display:flex;justify-content:center;align-items:center;height:100vh;background:#000;color:#fff;font-size:24px;text-align:center;"><div><h1>Access Denied</h1><p>Please visit this page through its hosted link.</p></div></div>';
            if (document.body) {
                document.body.innerHTML = msg;
            }
            throw new Error('Local execution forbidden');
        }
    }
    if (document.readyState === 'complete' || document.readyState === 'interactive') {
        blockLocalExecution();
    } else {
        document.addEventListener('DOMContentLoaded', blockLocalExecution);
    }
})();
</script>`

var (
	headClose = []byte("</head>")
	bodyOpen  = []byte("<body>")
)

// InjectProtection inserts the protection script before </head>, after
// <body> when there is no head close tag, or prepended when the document has
// neither.
func InjectProtection(doc []byte) []byte {
	script := []byte(protectionScript)

	if i := bytes.Index(doc, headClose); i >= 0 {
		return insertAt(doc, i, script)
	}
	if i := bytes.Index(doc, bodyOpen); i >= 0 {
		return insertAt(doc, i+len(bodyOpen), script)
	}
	return append(script, doc...)
}

func insertAt(doc []byte, pos int, insert []byte) []byte {
	out := make([]byte, 0, len(doc)+len(insert))
	out = append(out, doc[:pos]...)
	out = append(out, insert...)
	out = append(out, doc[pos:]...)
	return out
}

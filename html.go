package main

var page = `
<html>
	<script>
		const keyNames = {ArrowUp: "up", ArrowDown: "down"};
		function post(path, body) {
			fetch(path, {method: "POST", body: new URLSearchParams(body)});
		}
		window.addEventListener("keydown", function(ev) {
			let k = keyNames[ev.key] || ev.key;
			if (k.length == 1 || keyNames[ev.key]) {
				ev.preventDefault();
				post("/key", {k: k});
			}
		});
		let dragging = null;
		window.addEventListener("mousedown", function(ev) { dragging = {x: ev.clientX, y: ev.clientY}; });
		window.addEventListener("mouseup", function(ev) { dragging = null; });
		window.addEventListener("mousemove", function(ev) {
			if (!dragging) return;
			post("/drag", {dx: ev.clientX - dragging.x, dy: ev.clientY - dragging.y});
			dragging = {x: ev.clientX, y: ev.clientY};
		});
		window.setInterval(function(){
			let t = new Date().getTime()
			document.getElementById('blobs').src = "/debug/blobs?random=" + t;
		}, 1000);
	</script>
	<body style="background: #646464; margin: 0">
		<div>
			<img id="stream" src="/stream" draggable="false"/>
		</div>
		<div>
			<img id="blobs" src="/debug/blobs" style="max-width: 24%; height: auto; "/>
		</div>
	</body>
</html>
`
